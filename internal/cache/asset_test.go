package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewalk/scenewalk/internal/scene"
)

func TestAssetCache_SetAndGet(t *testing.T) {
	c := NewAssetCache()
	c.Set(&Template{Ref: "bina.gltf", Meshes: []string{"wall"}})

	got, ok := c.Get("bina.gltf")
	require.True(t, ok)
	assert.Equal(t, []string{"wall"}, got.Meshes)

	_, ok = c.Get("missing.gltf")
	assert.False(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestAssetCache_DeleteAndReset(t *testing.T) {
	c := NewAssetCache()
	c.Set(&Template{Ref: "a"})
	c.Set(&Template{Ref: "b"})

	c.Delete("a")
	assert.Equal(t, 1, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestTemplate_InstantiateBuildsFreshNodes(t *testing.T) {
	tpl := &Template{
		Ref:    "rise.gltf",
		Meshes: []string{"m1", "m2"},
		Clips:  []scene.Clip{{Name: "rise", Duration: time.Second}},
	}

	a := tpl.Instantiate()
	b := tpl.Instantiate()

	assert.NotSame(t, a.Node, b.Node)
	assert.Len(t, a.Node.Children(), 2)
	a.Clips[0].Name = "changed"
	assert.Equal(t, "rise", b.Clips[0].Name)
}

func TestAssetCache_ConcurrentAccess(t *testing.T) {
	c := NewAssetCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(&Template{Ref: "shared"})
			c.Get("shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

package loader

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu      sync.Mutex
	results []Result
	done    chan struct{}
	want    int
}

func newCollector(want int) *collector {
	return &collector{want: want, done: make(chan struct{})}
}

func (c *collector) sink(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
	if len(c.results) == c.want {
		close(c.done)
	}
}

func (c *collector) wait(t *testing.T) []Result {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for results")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func TestPool_DeliversEveryRequest(t *testing.T) {
	src := &SimSource{Latency: time.Millisecond, Fail: map[string]bool{"bad.glb": true}}
	col := newCollector(4)
	p := NewPool(src, 2, col.sink, nil)
	p.Start(context.Background())
	defer p.Close()

	p.Request(Request{Target: 0, Slot: 0, Part: 0, Kind: KindPart, Ref: "a.glb"})
	p.Request(Request{Target: 0, Slot: 0, Part: 1, Kind: KindPart, Ref: "b.glb"})
	p.Request(Request{Target: 0, Slot: 1, Part: 0, Kind: KindPart, Ref: "bad.glb"})
	p.Request(Request{Target: 0, Slot: 3, Kind: KindStatic, Ref: "guide.png"})

	results := col.wait(t)
	require.Len(t, results, 4)

	byRef := map[string]Result{}
	for _, r := range results {
		byRef[r.Ref] = r
	}
	assert.NoError(t, byRef["a.glb"].Err)
	assert.NotNil(t, byRef["a.glb"].Asset)
	assert.Equal(t, 1, byRef["b.glb"].Part)
	assert.Error(t, byRef["bad.glb"].Err)
	assert.Nil(t, byRef["bad.glb"].Asset)
	assert.Equal(t, KindStatic, byRef["guide.png"].Kind)
}

func TestPool_RequestAfterCloseFails(t *testing.T) {
	col := newCollector(1)
	p := NewPool(&SimSource{}, 1, col.sink, nil)
	p.Start(context.Background())
	p.Close()

	p.Request(Request{Ref: "late.glb"})

	results := col.wait(t)
	assert.ErrorIs(t, results[0].Err, ErrClosed)
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p := NewPool(&SimSource{}, 1, func(Result) {}, nil)
	p.Start(context.Background())
	p.Close()
	p.Close()
}

func TestSimSource_CancelledContext(t *testing.T) {
	src := &SimSource{Latency: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Load(ctx, "slow.glb")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, src.Calls("slow.glb"))
}

func TestSimSource_Clip(t *testing.T) {
	src := &SimSource{Clip: 2 * time.Second}
	a, err := src.Load(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, a.Clips, 1)
	assert.Equal(t, 2*time.Second, a.Clips[0].Duration)
}

const hallGLTF = `{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "roof"}, {}],
  "accessors": [
    {"componentType": 5126, "count": 3, "type": "SCALAR", "min": [0], "max": [2.5]},
    {"componentType": 5126, "count": 3, "type": "VEC3"},
    {"componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [4]},
    {"componentType": 5126, "count": 2, "type": "VEC4"}
  ],
  "animations": [
    {
      "name": "rise",
      "channels": [{"sampler": 0, "target": {"node": 0, "path": "translation"}}],
      "samplers": [{"input": 0, "output": 1}]
    },
    {
      "channels": [
        {"sampler": 0, "target": {"node": 1, "path": "translation"}},
        {"sampler": 1, "target": {"node": 1, "path": "rotation"}}
      ],
      "samplers": [{"input": 0, "output": 1}, {"input": 2, "output": 3}]
    }
  ]
}`

func TestFileSource_DecodesGLTF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hall.gltf"), []byte(hallGLTF), 0o644))

	src := NewFileSource(dir)
	a, err := src.Load(context.Background(), "hall.gltf")
	require.NoError(t, err)

	assert.Equal(t, "hall.gltf", a.Ref)
	require.Len(t, a.Node.Children(), 2)
	assert.Equal(t, "roof", a.Node.Children()[0].Name())
	assert.Equal(t, "node1", a.Node.Children()[1].Name())

	require.Len(t, a.Clips, 2)
	assert.Equal(t, "rise", a.Clips[0].Name)
	assert.Equal(t, 2500*time.Millisecond, a.Clips[0].Duration)
	assert.Equal(t, "clip1", a.Clips[1].Name)
	assert.Equal(t, 4*time.Second, a.Clips[1].Duration, "longest sampler wins")
}

func TestClipDuration_MissingInputRange(t *testing.T) {
	doc := &gltf.Document{
		Accessors: []*gltf.Accessor{{Count: 2, Type: gltf.AccessorScalar, ComponentType: gltf.ComponentFloat}},
	}
	anim := &gltf.Animation{Samplers: []*gltf.AnimationSampler{{Input: 0}, {Input: 7}}}

	assert.Zero(t, clipDuration(doc, anim))
}

func TestFileSource_CachesTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sign.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89}, 0o644))

	src := NewFileSource(dir)
	first, err := src.Load(context.Background(), "sign.png")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := src.Load(context.Background(), "sign.png")
	require.NoError(t, err)

	assert.NotSame(t, first.Node, second.Node)
	assert.Equal(t, "sign", second.Node.Children()[0].Name())
	hits, _ := src.Cache.Stats()
	assert.Equal(t, 1, hits)
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.gltf"), []byte("{"), 0o644))

	src := NewFileSource(dir)
	_, err := src.Load(context.Background(), "missing.glb")
	assert.Error(t, err)
	_, err = src.Load(context.Background(), "broken.gltf")
	assert.Error(t, err)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "part", KindPart.String())
	assert.Equal(t, "static", KindStatic.String())
	assert.Equal(t, "occluder", KindOccluder.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestInline_DeliversSynchronously(t *testing.T) {
	var got []Result
	l := &Inline{
		Source: &SimSource{Fail: map[string]bool{"bad": true}},
		Sink:   func(r Result) { got = append(got, r) },
	}

	l.Request(Request{Target: 0, Slot: 1, Part: 2, Kind: KindPart, Ref: "ok"})
	l.Request(Request{Kind: KindStatic, Ref: "bad"})

	require.Len(t, got, 2)
	assert.NoError(t, got[0].Err)
	assert.NotNil(t, got[0].Asset)
	assert.Equal(t, 2, got[0].Part)
	assert.Error(t, got[1].Err)
	assert.Nil(t, got[1].Asset)
}

package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/gltf"

	"github.com/scenewalk/scenewalk/internal/cache"
	"github.com/scenewalk/scenewalk/internal/scene"
)

// FileSource reads assets from a directory. glTF files contribute their node and
// animation names; any other file becomes a single opaque mesh.
type FileSource struct {
	Root  string
	Cache *cache.AssetCache
}

// NewFileSource creates a FileSource with its own template cache.
func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root, Cache: cache.NewAssetCache()}
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context, ref string) (*scene.Asset, error) {
	if s.Cache != nil {
		if tpl, ok := s.Cache.Get(ref); ok {
			return tpl.Instantiate(), nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tpl, err := s.readTemplate(ref)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		s.Cache.Set(tpl)
	}
	return tpl.Instantiate(), nil
}

func (s *FileSource) readTemplate(ref string) (*cache.Template, error) {
	path := filepath.Join(s.Root, filepath.FromSlash(ref))
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".gltf", ".glb":
		doc, err := gltf.Open(path)
		if err != nil {
			return nil, fmt.Errorf("decode gltf %q: %w", ref, err)
		}
		return decodeTemplate(ref, doc), nil
	default:
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read asset %q: %w", ref, err)
		}
		return &cache.Template{
			Ref:    ref,
			Meshes: []string{strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))},
		}, nil
	}
}

func decodeTemplate(ref string, doc *gltf.Document) *cache.Template {
	tpl := &cache.Template{Ref: ref}
	for i, n := range doc.Nodes {
		name := n.Name
		if name == "" {
			name = fmt.Sprintf("node%d", i)
		}
		tpl.Meshes = append(tpl.Meshes, name)
	}
	for i, a := range doc.Animations {
		name := a.Name
		if name == "" {
			name = fmt.Sprintf("clip%d", i)
		}
		tpl.Clips = append(tpl.Clips, scene.Clip{Name: name, Duration: clipDuration(doc, a)})
	}
	return tpl
}

// clipDuration is the latest keyframe time across the animation's samplers. Each
// sampler input accessor carries its largest time in Max.
func clipDuration(doc *gltf.Document, a *gltf.Animation) time.Duration {
	var end float32
	for _, sm := range a.Samplers {
		if sm == nil || sm.Input < 0 || sm.Input >= len(doc.Accessors) {
			continue
		}
		acc := doc.Accessors[sm.Input]
		if acc == nil || len(acc.Max) == 0 {
			continue
		}
		end = max(end, acc.Max[0])
	}
	return time.Duration(float64(end) * float64(time.Second))
}

// SimSource fabricates assets after a fixed latency. Refs listed in Fail never load.
type SimSource struct {
	Latency time.Duration
	Clip    time.Duration
	Fail    map[string]bool

	mu    sync.Mutex
	calls map[string]int
}

// Load implements Source.
func (s *SimSource) Load(ctx context.Context, ref string) (*scene.Asset, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[ref]++
	s.mu.Unlock()

	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if s.Fail[ref] {
		return nil, fmt.Errorf("load %q: simulated failure", ref)
	}

	tpl := &cache.Template{Ref: ref, Meshes: []string{"mesh"}}
	if s.Clip > 0 {
		tpl.Clips = []scene.Clip{{Name: "reveal", Duration: s.Clip}}
	}
	return tpl.Instantiate(), nil
}

// Calls returns how often ref was requested.
func (s *SimSource) Calls(ref string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[ref]
}

package cache

import (
	"sync"

	"github.com/scenewalk/scenewalk/internal/scene"
)

// Template is the decoded, shareable description of an asset. Nodes are never shared;
// each load builds a fresh node from the template.
type Template struct {
	Ref    string
	Meshes []string
	Clips  []scene.Clip
}

// Instantiate builds a new node tree for the template.
func (t *Template) Instantiate() *scene.Asset {
	root := scene.NewNode(t.Ref)
	for _, m := range t.Meshes {
		root.Add(scene.NewNode(m))
	}
	clips := make([]scene.Clip, len(t.Clips))
	copy(clips, t.Clips)
	return &scene.Asset{Ref: t.Ref, Node: root, Clips: clips}
}

// AssetCache maps content references to decoded templates so repeated references are
// decoded once per session.
type AssetCache struct {
	mu        sync.RWMutex
	templates map[string]*Template
	hits      int
	misses    int
}

// NewAssetCache creates an empty AssetCache.
func NewAssetCache() *AssetCache {
	return &AssetCache{
		templates: make(map[string]*Template),
	}
}

// Get retrieves a template by reference.
func (c *AssetCache) Get(ref string) (*Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[ref]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return t, ok
}

// Set stores a template under its reference.
func (c *AssetCache) Set(t *Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[t.Ref] = t
}

// Delete removes a template.
func (c *AssetCache) Delete(ref string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.templates, ref)
}

// Reset clears all templates and counters.
func (c *AssetCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = make(map[string]*Template)
	c.hits, c.misses = 0, 0
}

// Len returns the number of cached templates.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Stats returns lookup hits and misses.
func (c *AssetCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

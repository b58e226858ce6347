// Package scene models the renderable node tree handed to the render collaborator.
package scene

import (
	"github.com/scenewalk/scenewalk/internal/pose"
)

// Layer selects front/back compositing for a node's meshes.
type Layer int

const (
	// LayerContent draws after occluders, in front.
	LayerContent Layer = iota
	// LayerOccluder writes depth only and draws first.
	LayerOccluder
)

func (l Layer) String() string {
	switch l {
	case LayerContent:
		return "content"
	case LayerOccluder:
		return "occluder"
	default:
		return "unknown"
	}
}

// Node is one element of the scene tree. New nodes are visible.
type Node struct {
	name      string
	visible   bool
	layer     Layer
	transform pose.Pose
	clips     []Clip

	parent   *Node
	children []*Node
}

// NewNode creates a visible node with an identity transform.
func NewNode(name string) *Node {
	return &Node{
		name:      name,
		visible:   true,
		transform: pose.Identity(),
	}
}

// Name returns the node name.
func (n *Node) Name() string { return n.name }

// Parent returns the parent node or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children.
func (n *Node) Children() []*Node { return n.children }

// Add attaches child, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child if it is a direct child of n.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// SetVisible sets the node's own visibility flag.
func (n *Node) SetVisible(v bool) { n.visible = v }

// Visible returns the node's own visibility flag.
func (n *Node) Visible() bool { return n.visible }

// EffectiveVisible reports whether the node and all its ancestors are visible.
func (n *Node) EffectiveVisible() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if !cur.visible {
			return false
		}
	}
	return true
}

// SetLayer marks the node and its whole subtree for the given compositing layer.
func (n *Node) SetLayer(l Layer) {
	n.Walk(func(c *Node) { c.layer = l })
}

// Layer returns the compositing layer.
func (n *Node) Layer() Layer { return n.layer }

// SetTransform replaces the node's local transform.
func (n *Node) SetTransform(p pose.Pose) { n.transform = p }

// Transform returns the node's local transform.
func (n *Node) Transform() pose.Pose { return n.transform }

// SetClips attaches animation clips.
func (n *Node) SetClips(clips []Clip) { n.clips = clips }

// Clips returns the attached animation clips.
func (n *Node) Clips() []Clip { return n.clips }

// Walk visits n and every descendant depth-first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Find returns the first node in the subtree with the given name.
func (n *Node) Find(name string) *Node {
	var found *Node
	n.Walk(func(c *Node) {
		if found == nil && c.name == name {
			found = c
		}
	})
	return found
}

// VisibleNames lists the names of effectively visible nodes in the subtree.
func (n *Node) VisibleNames() []string {
	var names []string
	n.Walk(func(c *Node) {
		if c.EffectiveVisible() {
			names = append(names, c.name)
		}
	})
	return names
}

package replay

import (
	"sync"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
)

// Node is a scripted element with a mutable layout box.
type Node struct {
	id        string
	focusable bool

	mu        sync.RWMutex
	rect      geometry.Rect
	connected bool
}

var _ dom.Element = (*Node)(nil)

// NewNode creates a connected node. Focusable nodes take part in the tab
// order in document order.
func NewNode(id string, rect geometry.Rect, focusable bool) *Node {
	return &Node{id: id, rect: rect, focusable: focusable, connected: true}
}

func (n *Node) ID() string { return n.id }

func (n *Node) BoundingBox() geometry.Rect {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rect
}

func (n *Node) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected
}

func (n *Node) Focusable() bool { return n.focusable }

func (n *Node) setRect(r geometry.Rect) {
	n.mu.Lock()
	n.rect = r
	n.mu.Unlock()
}

func (n *Node) setConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}

// Center is the middle of the node's box.
func (n *Node) Center() geometry.Point {
	r := n.BoundingBox()
	return geometry.Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

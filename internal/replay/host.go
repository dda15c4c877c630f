// Package replay provides a scripted document: a dom.Host whose pointer,
// keyboard, scroll and layout changes are driven step by step, with manual
// time and frames. It backs the replay command and the engine tests.
package replay

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/schedule"
)

// DefaultViewport is a 1280x800 window at the origin.
var DefaultViewport = geometry.Rect{Top: 0, Left: 0, Right: 1280, Bottom: 800}

type listener struct {
	ctx    context.Context
	typ    dom.EventType
	target *Node
	fn     dom.Listener
}

// Host is a deterministic dom.Host. Listeners and observer callbacks are
// always invoked without the host lock held, on the goroutine driving the
// host.
type Host struct {
	clock  *schedule.ManualClock
	frames *schedule.ManualFrames

	mu         sync.Mutex
	viewport   geometry.Rect
	connection dom.ConnectionInfo
	primary    dom.PointerType
	pointer    geometry.Point
	nodes      []*Node
	focused    *Node
	listeners  []*listener
	observers  []*observer
	focusReads int
}

var _ dom.Host = (*Host)(nil)

// Option configures a Host.
type Option func(*Host)

func WithViewport(r geometry.Rect) Option { return func(h *Host) { h.viewport = r } }

func WithConnection(c dom.ConnectionInfo) Option { return func(h *Host) { h.connection = c } }

func WithPrimaryPointer(p dom.PointerType) Option { return func(h *Host) { h.primary = p } }

// WithStart sets the manual clock's initial time.
func WithStart(t time.Time) Option {
	return func(h *Host) { h.clock = schedule.NewManualClock(t) }
}

// NewHost creates an empty document.
func NewHost(opts ...Option) *Host {
	h := &Host{
		viewport:   DefaultViewport,
		connection: dom.ConnectionInfo{EffectiveType: dom.Connection4G},
		primary:    dom.PointerMouse,
		frames:     schedule.NewManualFrames(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.clock == nil {
		h.clock = schedule.NewManualClock(time.Unix(0, 0).UTC())
	}
	return h
}

func (h *Host) Clock() *schedule.ManualClock   { return h.clock }
func (h *Host) Frames() *schedule.ManualFrames { return h.frames }

// -- dom.Host --

func (h *Host) AddListener(ctx context.Context, typ dom.EventType, fn dom.Listener) {
	h.addListener(&listener{ctx: ctx, typ: typ, fn: fn})
}

func (h *Host) AddElementListener(ctx context.Context, el dom.Element, typ dom.EventType, fn dom.Listener) {
	n, ok := el.(*Node)
	if !ok {
		return
	}
	h.addListener(&listener{ctx: ctx, typ: typ, target: n, fn: fn})
}

func (h *Host) addListener(l *listener) {
	if l.ctx.Err() != nil {
		return
	}
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

func (h *Host) NewPositionObserver(cb dom.ObserverCallback) dom.Observer {
	return h.newObserver(cb, false)
}

func (h *Host) NewIntersectionObserver(cb dom.ObserverCallback) dom.Observer {
	return h.newObserver(cb, true)
}

func (h *Host) FocusOrder() []dom.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.focusReads++
	var out []dom.Element
	for _, n := range h.nodes {
		if n.focusable {
			out = append(out, n)
		}
	}
	return out
}

func (h *Host) Connection() dom.ConnectionInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connection
}

func (h *Host) PrimaryPointer() dom.PointerType {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.primary
}

// -- Document --

// Append adds nodes at the end of the document.
func (h *Host) Append(nodes ...*Node) {
	h.mu.Lock()
	h.nodes = append(h.nodes, nodes...)
	h.mu.Unlock()
	h.dispatch(dom.Event{Type: dom.EventMutation, Time: h.clock.Now(), AddedNodes: len(nodes)}, nil)
}

// Remove detaches n from the document.
func (h *Host) Remove(n *Node) {
	h.mu.Lock()
	i := slices.Index(h.nodes, n)
	if i < 0 {
		h.mu.Unlock()
		return
	}
	h.nodes = slices.Delete(h.nodes, i, i+1)
	if h.focused == n {
		h.focused = nil
	}
	h.mu.Unlock()
	n.setConnected(false)
	h.dispatch(dom.Event{Type: dom.EventMutation, Time: h.clock.Now(), RemovedNodes: 1}, nil)
}

// Node finds a connected node by ID.
func (h *Host) Node(id string) (*Node, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, n := range h.nodes {
		if n.id == id {
			return n, true
		}
	}
	return nil, false
}

// SetRect moves n. Observers see the change on the next Settle.
func (h *Host) SetRect(n *Node, r geometry.Rect) { n.setRect(r) }

// Scroll scrolls the page by (dx, dy); every node's box moves the opposite
// way.
func (h *Host) Scroll(dx, dy float64) {
	h.mu.Lock()
	nodes := slices.Clone(h.nodes)
	h.mu.Unlock()
	for _, n := range nodes {
		r := n.BoundingBox()
		n.setRect(geometry.Rect{Top: r.Top - dy, Left: r.Left - dx, Right: r.Right - dx, Bottom: r.Bottom - dy})
	}
}

// SetViewport resizes the window. Visibility is re-evaluated on the next
// Settle.
func (h *Host) SetViewport(r geometry.Rect) {
	h.mu.Lock()
	h.viewport = r
	h.mu.Unlock()
}

func (h *Host) SetConnection(c dom.ConnectionInfo) {
	h.mu.Lock()
	h.connection = c
	h.mu.Unlock()
}

// -- Input --

// MovePointer dispatches a pointer move. The mouse predictor only sees it
// once a frame is flushed.
func (h *Host) MovePointer(p geometry.Point, typ dom.PointerType) {
	h.mu.Lock()
	h.pointer = p
	h.mu.Unlock()
	h.dispatch(dom.Event{Type: dom.EventPointerMove, Time: h.clock.Now(), PointerType: typ, Point: p}, nil)
}

func (h *Host) PointerDown(p geometry.Point, typ dom.PointerType) {
	h.dispatch(dom.Event{Type: dom.EventPointerDown, Time: h.clock.Now(), PointerType: typ, Point: p}, nil)
}

// Touch taps the center of n.
func (h *Host) Touch(n *Node) {
	c := n.Center()
	h.PointerDown(c, dom.PointerTouch)
	h.dispatch(dom.Event{Type: dom.EventTouchStart, Time: h.clock.Now(), PointerType: dom.PointerTouch, Point: c, Target: n}, n)
}

// PressKey dispatches a keydown. Tab also moves focus along the tab order,
// wrapping at either end.
func (h *Host) PressKey(key string, shift bool) {
	h.dispatch(dom.Event{Type: dom.EventKeyDown, Time: h.clock.Now(), Key: key, ShiftKey: shift}, nil)
	if key != dom.KeyTab {
		return
	}
	if next := h.nextFocus(shift); next != nil {
		h.Focus(next)
	}
}

// Focus moves focus to n as a click or script would.
func (h *Host) Focus(n *Node) {
	h.mu.Lock()
	h.focused = n
	h.mu.Unlock()
	h.dispatch(dom.Event{Type: dom.EventFocusIn, Time: h.clock.Now(), Target: n}, nil)
}

func (h *Host) nextFocus(reverse bool) *Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	var order []*Node
	for _, n := range h.nodes {
		if n.focusable {
			order = append(order, n)
		}
	}
	if len(order) == 0 {
		return nil
	}
	i := slices.Index(order, h.focused)
	switch {
	case i < 0 && reverse:
		return order[len(order)-1]
	case i < 0:
		return order[0]
	case reverse:
		return order[(i-1+len(order))%len(order)]
	default:
		return order[(i+1)%len(order)]
	}
}

// Pointer is the last pointer position dispatched.
func (h *Host) Pointer() geometry.Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pointer
}

// Focused is the node holding focus, or nil.
func (h *Host) Focused() *Node {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// -- Time --

// Advance moves the clock, firing due timers.
func (h *Host) Advance(d time.Duration) { h.clock.Advance(d) }

// Settle delivers pending observer notifications, then flushes one frame.
func (h *Host) Settle() {
	h.deliverObservations()
	h.frames.Flush()
}

// -- Introspection --

// ListenerCount is the number of live listeners.
func (h *Host) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruneLocked()
	return len(h.listeners)
}

// ObservedCount is the number of elements watched across all observers.
func (h *Host) ObservedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, o := range h.observers {
		n += len(o.targets)
	}
	return n
}

// FocusOrderReads counts FocusOrder calls.
func (h *Host) FocusOrderReads() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focusReads
}

func (h *Host) pruneLocked() {
	h.listeners = slices.DeleteFunc(h.listeners, func(l *listener) bool {
		return l.ctx.Err() != nil
	})
}

// dispatch calls the live listeners for ev. Element listeners only see events
// targeting their element.
func (h *Host) dispatch(ev dom.Event, target *Node) {
	h.mu.Lock()
	h.pruneLocked()
	var matched []*listener
	for _, l := range h.listeners {
		if l.typ != ev.Type {
			continue
		}
		if l.target != nil && l.target != target {
			continue
		}
		matched = append(matched, l)
	}
	h.mu.Unlock()

	for _, l := range matched {
		if l.ctx.Err() == nil {
			l.fn(ev)
		}
	}
}

package replay

import (
	"slices"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
)

type observedState struct {
	rect         geometry.Rect
	intersecting bool
	reported     bool
}

// observer diffs its targets against their last reported state whenever the
// host settles. Intersection observers only report visibility flips.
type observer struct {
	host             *Host
	cb               dom.ObserverCallback
	intersectionOnly bool

	order   []*Node
	targets map[*Node]*observedState
	closed  bool
}

func (h *Host) newObserver(cb dom.ObserverCallback, intersectionOnly bool) dom.Observer {
	o := &observer{host: h, cb: cb, intersectionOnly: intersectionOnly, targets: make(map[*Node]*observedState)}
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
	return o
}

func (o *observer) Observe(el dom.Element) {
	n, ok := el.(*Node)
	if !ok {
		return
	}
	o.host.mu.Lock()
	defer o.host.mu.Unlock()
	if o.closed {
		return
	}
	if _, exists := o.targets[n]; exists {
		return
	}
	o.targets[n] = &observedState{}
	o.order = append(o.order, n)
}

func (o *observer) Unobserve(el dom.Element) {
	n, ok := el.(*Node)
	if !ok {
		return
	}
	o.host.mu.Lock()
	defer o.host.mu.Unlock()
	o.unobserveLocked(n)
}

func (o *observer) unobserveLocked(n *Node) {
	if _, exists := o.targets[n]; !exists {
		return
	}
	delete(o.targets, n)
	o.order = slices.DeleteFunc(o.order, func(c *Node) bool { return c == n })
}

func (o *observer) Disconnect() {
	h := o.host
	h.mu.Lock()
	defer h.mu.Unlock()
	o.closed = true
	o.targets = make(map[*Node]*observedState)
	o.order = nil
	h.observers = slices.DeleteFunc(h.observers, func(c *observer) bool { return c == o })
}

// collectLocked builds the next batch. Detached nodes are dropped silently.
func (o *observer) collectLocked(viewport geometry.Rect) []dom.PositionEntry {
	var batch []dom.PositionEntry
	for _, n := range slices.Clone(o.order) {
		if !n.IsConnected() {
			o.unobserveLocked(n)
			continue
		}
		st := o.targets[n]
		rect := n.BoundingBox()
		visible := intersects(rect, viewport)

		changed := !st.reported || visible != st.intersecting
		if !o.intersectionOnly && !geometry.RectsEqual(rect, st.rect) {
			changed = true
		}
		if !changed {
			continue
		}
		st.rect, st.intersecting, st.reported = rect, visible, true
		batch = append(batch, dom.PositionEntry{Target: n, BoundingBox: rect, IsIntersecting: visible})
	}
	return batch
}

func (h *Host) deliverObservations() {
	type delivery struct {
		o     *observer
		batch []dom.PositionEntry
	}
	h.mu.Lock()
	var out []delivery
	for _, o := range h.observers {
		if batch := o.collectLocked(h.viewport); len(batch) > 0 {
			out = append(out, delivery{o: o, batch: batch})
		}
	}
	h.mu.Unlock()

	for _, d := range out {
		h.mu.Lock()
		closed := d.o.closed
		h.mu.Unlock()
		if !closed {
			d.o.cb(d.batch)
		}
	}
}

func intersects(a, b geometry.Rect) bool {
	return a.Left <= b.Right && a.Right >= b.Left && a.Top <= b.Bottom && a.Bottom >= b.Top
}

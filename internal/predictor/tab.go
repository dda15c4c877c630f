package predictor

import (
	"context"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/registry"
)

// Tab predicts keyboard focus movement: after a Tab keypress moves focus,
// the next TabOffset focusable elements in that direction are fired.
type Tab struct {
	d    Dispatcher
	host dom.Host

	connected   bool
	lastKeyDown *dom.Event
	order       []dom.Element
	lastIndex   int
}

func NewTab(d Dispatcher, host dom.Host) *Tab {
	return &Tab{d: d, host: host, lastIndex: -1}
}

// Connect listens for keydown, focusin and document mutations until ctx is
// done or Disconnect is called.
func (p *Tab) Connect(ctx context.Context) {
	p.connected = true
	p.host.AddListener(ctx, dom.EventKeyDown, func(ev dom.Event) {
		p.d.Do(func() { p.onKeyDown(ev) })
	})
	p.host.AddListener(ctx, dom.EventFocusIn, func(ev dom.Event) {
		p.d.Do(func() { p.onFocusIn(ev) })
	})
	p.host.AddListener(ctx, dom.EventMutation, func(ev dom.Event) {
		p.d.Do(func() { p.onMutation(ev) })
	})
}

// Disconnect forgets all keyboard state.
func (p *Tab) Disconnect() {
	p.connected = false
	p.lastKeyDown = nil
	p.Invalidate()
}

// Connected reports whether the predictor is listening.
func (p *Tab) Connected() bool { return p.connected }

// Invalidate drops the cached focus order; it is rebuilt on the next Tab.
func (p *Tab) Invalidate() {
	p.order = nil
	p.lastIndex = -1
}

func (p *Tab) onKeyDown(ev dom.Event) {
	if !p.connected {
		return
	}
	if ev.Key == dom.KeyTab {
		p.lastKeyDown = &ev
		return
	}
	p.lastKeyDown = nil
}

func (p *Tab) onMutation(ev dom.Event) {
	if ev.AddedNodes > 0 || ev.RemovedNodes > 0 {
		p.Invalidate()
	}
}

func (p *Tab) onFocusIn(ev dom.Event) {
	if !p.connected || p.lastKeyDown == nil {
		// Focus moved by pointer or script.
		return
	}
	reverse := p.lastKeyDown.ShiftKey
	p.lastKeyDown = nil
	if ev.Target == nil {
		return
	}

	if len(p.order) == 0 {
		p.order = p.host.FocusOrder()
	}
	idx := FocusIndex(reverse, p.lastIndex, p.order, ev.Target)
	p.lastIndex = idx
	if idx < 0 {
		return
	}

	step := 1
	if reverse {
		step = -1
	}
	var hits []*registry.TrackedElement
	for i := 0; i <= p.d.Settings().TabOffset; i++ {
		j := idx + step*i
		if j < 0 || j >= len(p.order) {
			break
		}
		if t, ok := p.d.Lookup(p.order[j]); ok && t.CanRun() {
			hits = append(hits, t)
		}
	}
	for _, t := range hits {
		p.d.CallCallback(t, schemas.TabHit(reverse))
	}
}

// FocusIndex finds target in order. The slot next to lastIndex in the
// direction of travel is tried first since sequential tabbing lands there;
// otherwise it falls back to a linear scan. It returns -1 if absent.
func FocusIndex(reverse bool, lastIndex int, order []dom.Element, target dom.Element) int {
	if lastIndex >= 0 {
		expected := lastIndex + 1
		if reverse {
			expected = lastIndex - 1
		}
		if expected >= 0 && expected < len(order) && order[expected] == target {
			return expected
		}
	}
	for i, el := range order {
		if el == target {
			return i
		}
	}
	return -1
}

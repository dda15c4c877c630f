package handler

import (
	"context"
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/replay"
	"github.com/xkilldash9x/foresight/internal/settings"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

type hit struct {
	name string
	hit  schemas.HitType
}

// mockDispatcher stands in for the engine without locking.
type mockDispatcher struct {
	reg      *registry.Registry
	settings settings.Settings

	hits    []hit
	emitted []events.Event
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{reg: registry.New(), settings: settings.Defaults()}
}

func (d *mockDispatcher) track(n *replay.Node) *registry.TrackedElement {
	t := registry.NewTrackedElement(n, func(context.Context) error { return nil },
		"", nil, n.BoundingBox(), d.settings.DefaultHitSlop, true, schemas.ReactivateNever)
	d.reg.Add(t)
	return t
}

func (d *mockDispatcher) Elements() []*registry.TrackedElement { return d.reg.Elements() }

func (d *mockDispatcher) Lookup(el dom.Element) (*registry.TrackedElement, bool) {
	return d.reg.Get(el)
}

func (d *mockDispatcher) CallCallback(t *registry.TrackedElement, h schemas.HitType) {
	if !t.CanRun() {
		return
	}
	t.MarkRunning(epoch)
	d.hits = append(d.hits, hit{name: t.Name, hit: h})
}

func (d *mockDispatcher) Settings() settings.Settings   { return d.settings }
func (d *mockDispatcher) Emit(ev events.Event)          { d.emitted = append(d.emitted, ev) }
func (d *mockDispatcher) HasListeners(events.Kind) bool { return true }
func (d *mockDispatcher) Now() time.Time                { return epoch }
func (d *mockDispatcher) Do(fn func())                  { fn() }

// apply mimics the engine's settings path.
func (d *mockDispatcher) apply(h Handler, p settings.Partial) {
	var changes []schemas.SettingChange
	d.settings, changes = settings.Apply(d.settings, p, nil)
	h.ApplySettings(changes)
}

func (d *mockDispatcher) ofKind(k events.Kind) []events.Event {
	var out []events.Event
	for _, ev := range d.emitted {
		if ev.Kind() == k {
			out = append(out, ev)
		}
	}
	return out
}

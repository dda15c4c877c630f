package predictor

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// -- Mock Element --

type mockElement struct {
	id        string
	rect      geometry.Rect
	connected bool
}

func newMockElement(id string, rect geometry.Rect) *mockElement {
	return &mockElement{id: id, rect: rect, connected: true}
}

func (e *mockElement) ID() string                 { return e.id }
func (e *mockElement) BoundingBox() geometry.Rect { return e.rect }
func (e *mockElement) IsConnected() bool          { return e.connected }

// -- Mock Host --

type hostListener struct {
	ctx context.Context
	fn  dom.Listener
}

// mockHost records listeners so tests can dispatch events to them. Focus
// order reads go through mock.Mock expectations.
type mockHost struct {
	mock.Mock
	mu        sync.Mutex
	listeners map[dom.EventType][]hostListener
}

func newMockHost() *mockHost {
	return &mockHost{listeners: make(map[dom.EventType][]hostListener)}
}

func (h *mockHost) AddListener(ctx context.Context, typ dom.EventType, fn dom.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[typ] = append(h.listeners[typ], hostListener{ctx: ctx, fn: fn})
}

func (h *mockHost) AddElementListener(ctx context.Context, _ dom.Element, typ dom.EventType, fn dom.Listener) {
	h.AddListener(ctx, typ, fn)
}

func (h *mockHost) NewPositionObserver(dom.ObserverCallback) dom.Observer     { return nopObserver{} }
func (h *mockHost) NewIntersectionObserver(dom.ObserverCallback) dom.Observer { return nopObserver{} }

func (h *mockHost) FocusOrder() []dom.Element {
	args := h.Called()
	order, _ := args.Get(0).([]dom.Element)
	return append([]dom.Element(nil), order...)
}

func (h *mockHost) Connection() dom.ConnectionInfo {
	return dom.ConnectionInfo{EffectiveType: dom.Connection4G}
}

func (h *mockHost) PrimaryPointer() dom.PointerType { return dom.PointerMouse }

// dispatch delivers ev to every live listener of its type.
func (h *mockHost) dispatch(ev dom.Event) {
	h.mu.Lock()
	ls := append([]hostListener(nil), h.listeners[ev.Type]...)
	h.mu.Unlock()
	for _, l := range ls {
		if l.ctx.Err() == nil {
			l.fn(ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(dom.Element)   {}
func (nopObserver) Unobserve(dom.Element) {}
func (nopObserver) Disconnect()           {}

// -- Mock Dispatcher --

type hit struct {
	name string
	hit  schemas.HitType
}

// mockDispatcher is a lock-free stand-in for the engine. CallCallback marks
// the element running so the at-most-once guard behaves as in production.
type mockDispatcher struct {
	reg      *registry.Registry
	settings settings.Settings
	now      time.Time

	hits      []hit
	emitted   []events.Event
	listening map[events.Kind]bool
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		reg:       registry.New(),
		settings:  settings.Defaults(),
		now:       epoch,
		listening: map[events.Kind]bool{},
	}
}

func (d *mockDispatcher) track(el *mockElement, slop geometry.HitSlop) *registry.TrackedElement {
	t := registry.NewTrackedElement(el, func(context.Context) error { return nil },
		"", nil, el.rect, slop, false, schemas.ReactivateNever)
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
	t.MarkRunning(d.now)
	d.hits = append(d.hits, hit{name: t.Name, hit: h})
}

func (d *mockDispatcher) Settings() settings.Settings     { return d.settings }
func (d *mockDispatcher) Emit(ev events.Event)            { d.emitted = append(d.emitted, ev) }
func (d *mockDispatcher) HasListeners(k events.Kind) bool { return d.listening[k] }
func (d *mockDispatcher) Now() time.Time                  { return d.now }
func (d *mockDispatcher) Do(fn func())                    { fn() }

func (d *mockDispatcher) hitNames() []string {
	out := make([]string, 0, len(d.hits))
	for _, h := range d.hits {
		out = append(out, h.name)
	}
	return out
}

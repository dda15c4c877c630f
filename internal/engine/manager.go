// internal/engine/manager.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/handler"
	"github.com/xkilldash9x/foresight/internal/observability"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/schedule"
	"github.com/xkilldash9x/foresight/internal/settings"
)

var (
	ErrClosed      = errors.New("engine: manager is closed")
	ErrNilHost     = errors.New("engine: host cannot be nil")
	ErrNilElement  = errors.New("engine: element cannot be nil")
	ErrNilCallback = errors.New("engine: callback cannot be nil")
)

// RegisterOptions describes an element to track.
type RegisterOptions struct {
	Element  dom.Element
	Callback registry.Callback
	// HitSlop pads the element's box. Nil follows the default hit slop
	// setting, including later changes to it.
	HitSlop *geometry.HitSlop
	Name    string
	Meta    map[string]string
	// ReactivateAfter re-arms the element this long after its callback
	// completes. Zero or schemas.ReactivateNever disables automatic
	// reactivation.
	ReactivateAfter time.Duration
}

// RegisterResult reports the outcome of Register. A refused registration is
// not an error: IsRegistered is false and the flags say why.
type RegisterResult struct {
	IsRegistered        bool
	IsTouchDevice       bool
	IsLimitedConnection bool
	// Unregister removes the element with reason apiCall. It is safe to call
	// on a refused registration.
	Unregister func()
}

// Manager is the coordinator. Every state transition, whether from the
// public API, a host listener, a frame, a timer or a callback completion,
// runs under one mutex. Events raised under the mutex are delivered after it
// is released, so listeners may call back into the manager.
type Manager struct {
	host            dom.Host
	logger          *zap.Logger
	clock           schedule.Clock
	frames          schedule.FrameScheduler
	emitter         *events.Emitter
	callbackTimeout time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	// callbacks counts runs whose completion is not yet applied. deliveries
	// also covers delivering the events that completion raised.
	callbacks  sync.WaitGroup
	deliveries sync.WaitGroup

	mu       sync.Mutex
	pending  []events.Event
	closed   bool
	registry *registry.Registry
	settings settings.Settings
	counters schemas.HitCounters

	// listenCancel is non-nil while global listeners are attached.
	listenCancel context.CancelFunc
	pointerType  dom.PointerType
	pointer      *handler.Pointer
	touch        *handler.Touch
	active       handler.Handler
}

// Option configures a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	ctx             context.Context
	logger          *zap.Logger
	clock           schedule.Clock
	frames          schedule.FrameScheduler
	settings        settings.Partial
	callbackTimeout time.Duration
}

// WithContext sets the parent of the context handed to callbacks.
func WithContext(ctx context.Context) Option { return func(o *managerOptions) { o.ctx = ctx } }

func WithLogger(l *zap.Logger) Option { return func(o *managerOptions) { o.logger = l } }

// WithClock replaces the wall clock used for timestamps and reactivation.
func WithClock(c schedule.Clock) Option { return func(o *managerOptions) { o.clock = c } }

// WithFrames replaces the frame scheduler throttling pointer processing.
func WithFrames(f schedule.FrameScheduler) Option { return func(o *managerOptions) { o.frames = f } }

// WithSettings applies initial settings on top of the defaults.
func WithSettings(p settings.Partial) Option { return func(o *managerOptions) { o.settings = p } }

// WithCallbackTimeout bounds the context handed to each callback. Zero means
// no deadline.
func WithCallbackTimeout(d time.Duration) Option {
	return func(o *managerOptions) { o.callbackTimeout = d }
}

// New creates a manager bound to host. No host listener is attached until
// the first element registers.
func New(host dom.Host, opts ...Option) (*Manager, error) {
	if host == nil {
		return nil, ErrNilHost
	}
	o := managerOptions{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.clock == nil {
		o.clock = schedule.RealClock()
	}
	if o.frames == nil {
		o.frames = schedule.NewIntervalFrames(o.clock, schedule.DefaultFrameInterval)
	}

	logger := o.logger.With(zap.String("component", observability.ManagerComponent))
	m := &Manager{
		host:            host,
		logger:          logger,
		clock:           o.clock,
		frames:          o.frames,
		emitter:         events.NewEmitter(logger),
		callbackTimeout: o.callbackTimeout,
		registry:        registry.New(),
		settings:        settings.New(o.settings, logger),
		pointerType:     host.PrimaryPointer(),
	}
	if m.pointerType == "" {
		m.pointerType = dom.PointerMouse
	}
	m.baseCtx, m.baseCancel = context.WithCancel(o.ctx)

	d := dispatcher{m}
	pointer, err := handler.NewPointer(d, host, m.frames, logger)
	if err != nil {
		m.baseCancel()
		return nil, fmt.Errorf("failed to create pointer handler: %w", err)
	}
	m.pointer = pointer
	m.touch = handler.NewTouch(d, host, logger)
	m.active = m.handlerFor(m.pointerType)
	observability.SetManagerLogging(m.settings.EnableManagerLogging)
	return m, nil
}

// -- Locking --

func (m *Manager) lock() { m.mu.Lock() }

// unlock releases the mutex, then delivers the events queued while it was
// held.
func (m *Manager) unlock() { m.deliver(m.release()) }

// release takes the queued events and releases the mutex.
func (m *Manager) release() []events.Event {
	queued := m.pending
	m.pending = nil
	m.mu.Unlock()
	return queued
}

func (m *Manager) deliver(queued []events.Event) {
	for _, ev := range queued {
		m.emitter.Emit(ev)
	}
}

// do runs fn under the mutex unless the manager is closed.
func (m *Manager) do(fn func()) {
	m.lock()
	defer m.unlock()
	if m.closed {
		return
	}
	fn()
}

func (m *Manager) emit(ev events.Event) {
	if m.emitter.HasListeners(ev.Kind()) {
		m.pending = append(m.pending, ev)
	}
}

// lifecycle logs manager lifecycle messages at Info when manager logging is
// enabled and at Debug otherwise.
func (m *Manager) lifecycle(msg string, fields ...zap.Field) {
	if m.settings.EnableManagerLogging {
		m.logger.Info(msg, fields...)
		return
	}
	m.logger.Debug(msg, fields...)
}

// -- Public API --

// Register starts tracking an element. Registration is refused, without
// error, on a limited connection. Registering a tracked element again only
// bumps its register count.
func (m *Manager) Register(opts RegisterOptions) (RegisterResult, error) {
	if opts.Element == nil {
		return RegisterResult{}, ErrNilElement
	}
	if opts.Callback == nil {
		return RegisterResult{}, ErrNilCallback
	}

	m.lock()
	defer m.unlock()
	if m.closed {
		return RegisterResult{}, ErrClosed
	}

	el := opts.Element
	result := RegisterResult{
		IsTouchDevice: m.pointerType.IsTouch(),
		Unregister:    func() { m.Unregister(el, schemas.ReasonAPICall) },
	}
	if m.host.Connection().IsLimited(m.settings.MinimumConnectionType) {
		result.IsLimitedConnection = true
		result.Unregister = func() {}
		m.lifecycle("Registration refused on limited connection.", zap.String("element", el.ID()))
		return result, nil
	}

	if t, ok := m.registry.Get(el); ok {
		t.RegisterCount++
		m.lifecycle("Element already registered.",
			zap.String("name", t.Name), zap.Int("register_count", t.RegisterCount))
		return result, nil
	}

	rect := el.BoundingBox()
	if err := rect.Validate(); err != nil {
		return RegisterResult{}, fmt.Errorf("failed to register %q: %w", el.ID(), err)
	}
	slop, usesDefault := m.settings.DefaultHitSlop, true
	if opts.HitSlop != nil {
		slop, usesDefault = opts.HitSlop.Clamp(), false
	}
	reactivateAfter := opts.ReactivateAfter
	if reactivateAfter <= 0 {
		reactivateAfter = schemas.ReactivateNever
	}

	t := registry.NewTrackedElement(el, opts.Callback, opts.Name, opts.Meta, rect, slop, usesDefault, reactivateAfter)
	m.registry.Add(t)
	if m.listenersAttached() {
		m.active.Observe(t)
	} else {
		m.attachListeners()
	}

	result.IsRegistered = true
	m.lifecycle("Element registered.", zap.String("name", t.Name), zap.String("id", t.ID))
	m.emit(events.ElementRegistered{Header: m.header(), Element: t.Snapshot()})
	return result, nil
}

// Unregister stops tracking el. Unknown elements are ignored. A callback in
// flight for el still runs to completion but its outcome is discarded.
func (m *Manager) Unregister(el dom.Element, reason schemas.UnregisterReason) {
	m.do(func() { m.unregister(el, reason) })
}

// Reactivate re-arms el immediately. It does nothing if el is unknown or its
// callback is running.
func (m *Manager) Reactivate(el dom.Element) {
	m.do(func() {
		t, ok := m.registry.Get(el)
		if !ok || t.Info.IsRunning {
			return
		}
		m.reactivate(t)
	})
}

// AlterSettings clamps and applies p and returns the settings that actually
// changed. Listeners receive a single SettingsChanged event.
func (m *Manager) AlterSettings(p settings.Partial) []schemas.SettingChange {
	m.lock()
	defer m.unlock()
	if m.closed {
		return nil
	}

	next, changes := settings.Apply(m.settings, p, m.logger)
	if len(changes) == 0 {
		return nil
	}
	m.settings = next

	if settings.HasChanged(changes, settings.NameDefaultHitSlop) {
		for _, t := range m.registry.Elements() {
			if !t.UsesDefaultHitSlop {
				continue
			}
			// Visible elements are re-measured along with the new slop.
			if t.IsIntersectingViewport {
				if rect := t.Element.BoundingBox(); rect.Validate() == nil {
					t.UpdateRect(rect)
				}
			}
			t.SetHitSlop(next.DefaultHitSlop)
			m.emit(events.ElementDataUpdated{
				Header:  m.header(),
				Element: t.Snapshot(),
				Props:   []events.UpdatedProp{events.PropBounds},
			})
		}
	}
	if settings.HasChanged(changes, settings.NameEnableManagerLogging) {
		observability.SetManagerLogging(next.EnableManagerLogging)
	}
	m.pointer.ApplySettings(changes)
	m.touch.ApplySettings(changes)

	m.lifecycle("Settings changed.", zap.Int("changes", len(changes)))
	m.emit(events.SettingsChanged{Header: m.header(), Changes: changes})
	return changes
}

// On subscribes fn to events of kind. Use events.WithContext to tie the
// subscription to a context.
func (m *Manager) On(kind events.Kind, fn events.Listener, opts ...events.Option) (unsubscribe func()) {
	return m.emitter.On(kind, fn, opts...)
}

// Events exposes the emitter for typed subscriptions via events.Subscribe.
func (m *Manager) Events() *events.Emitter { return m.emitter }

// Settings returns a copy of the current settings.
func (m *Manager) Settings() settings.Settings {
	m.lock()
	defer m.unlock()
	return m.settings
}

// Wait blocks until every callback started so far has completed and its
// outcome is recorded. Listeners may call it. The completion events may still
// be in delivery when it returns.
func (m *Manager) Wait() { m.callbacks.Wait() }

// Drain is Wait plus delivery of every completion event. It must not be
// called from a listener.
func (m *Manager) Drain() { m.deliveries.Wait() }

// Close unregisters every element with reason shutdown, detaches all host
// listeners, cancels the callback context and waits for in-flight callbacks.
// Listeners may call it.
func (m *Manager) Close() error {
	m.lock()
	if m.closed {
		m.unlock()
		return nil
	}
	for _, t := range m.registry.Elements() {
		m.unregister(t.Element, schemas.ReasonShutdown)
	}
	m.detachListeners()
	m.closed = true
	m.unlock()

	m.baseCancel()
	m.callbacks.Wait()
	m.logger.Debug("Manager closed.")
	return nil
}

func (m *Manager) header() events.Header { return events.Header{Timestamp: m.clock.Now()} }

package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/predictor"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// dispatcher is the view of the manager handed to handlers and predictors.
// Every method except Do assumes the mutex is held.
type dispatcher struct{ m *Manager }

var _ predictor.Dispatcher = dispatcher{}

func (d dispatcher) Elements() []*registry.TrackedElement { return d.m.registry.Elements() }

func (d dispatcher) Lookup(el dom.Element) (*registry.TrackedElement, bool) {
	return d.m.registry.Get(el)
}

func (d dispatcher) CallCallback(t *registry.TrackedElement, hit schemas.HitType) {
	d.m.callCallback(t, hit)
}

func (d dispatcher) Settings() settings.Settings     { return d.m.settings }
func (d dispatcher) Emit(ev events.Event)            { d.m.emit(ev) }
func (d dispatcher) HasListeners(k events.Kind) bool { return d.m.emitter.HasListeners(k) }
func (d dispatcher) Now() time.Time                  { return d.m.clock.Now() }
func (d dispatcher) Do(fn func())                    { d.m.do(fn) }

// callCallback starts t's callback on its own goroutine. It refuses when the
// element is not tracked, inactive or already running, so at most one run
// per element is ever in flight.
func (m *Manager) callCallback(t *registry.TrackedElement, hit schemas.HitType) {
	if !m.registry.Contains(t) || !t.CanRun() {
		return
	}
	started := m.clock.Now()
	t.MarkRunning(started)
	m.counters.Record(hit)

	m.lifecycle("Callback invoked.",
		zap.String("name", t.Name),
		zap.String("kind", string(hit.Kind)),
		zap.String("subtype", hit.SubType))
	m.emit(events.CallbackInvoked{Header: events.Header{Timestamp: started}, Element: t.Snapshot(), HitType: hit})

	ctx := m.baseCtx
	cb := t.Callback
	m.callbacks.Add(1)
	m.deliveries.Add(1)
	go func() {
		defer m.deliveries.Done()
		err := m.runCallback(ctx, cb)
		m.lock()
		m.completeCallback(t, hit, started, err)
		queued := m.release()
		// The run no longer counts as in flight once its state is applied,
		// so a listener may call Wait or Close on the completion event.
		m.callbacks.Done()
		m.deliver(queued)
	}()
}

// runCallback invokes cb, converting a panic into an error.
func (m *Manager) runCallback(ctx context.Context, cb registry.Callback) (err error) {
	if m.callbackTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.callbackTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return cb(ctx)
}

func (m *Manager) completeCallback(t *registry.TrackedElement, hit schemas.HitType, started time.Time, err error) {
	if !m.registry.Contains(t) {
		// Unregistered mid-flight.
		m.logger.Debug("Discarding completion for untracked element.", zap.String("name", t.Name))
		return
	}

	now := m.clock.Now()
	elapsed := now.Sub(started)
	status, msg := schemas.StatusSuccess, ""
	if err != nil {
		status, msg = schemas.StatusError, err.Error()
		m.logger.Error("Callback failed.",
			zap.String("name", t.Name),
			zap.String("kind", string(hit.Kind)),
			zap.Error(err))
	}
	t.MarkCompleted(now, elapsed, status, msg)

	if m.listenersAttached() {
		m.active.Unobserve(t)
	}
	if t.ReactivatesAutomatically() {
		m.scheduleReactivation(t)
	}

	wasLastActive := m.registry.ActiveCount() == 0
	m.emit(events.CallbackCompleted{
		Header:               events.Header{Timestamp: now},
		Element:              t.Snapshot(),
		HitType:              hit,
		Elapsed:              elapsed,
		Status:               status,
		ErrorMessage:         msg,
		WasLastActiveElement: wasLastActive,
	})
	if wasLastActive {
		m.detachListeners()
	}
}

func (m *Manager) scheduleReactivation(t *registry.TrackedElement) {
	timer := m.clock.AfterFunc(t.Info.ReactivateAfter, func() {
		m.do(func() {
			if !m.registry.Contains(t) || t.Info.IsRunning || t.Info.IsActive {
				return
			}
			m.reactivate(t)
		})
	})
	t.SetReactivationTimer(timer)
}

func (m *Manager) reactivate(t *registry.TrackedElement) {
	t.Activate()
	if m.listenersAttached() {
		m.active.Observe(t)
	} else {
		m.attachListeners()
	}
	m.lifecycle("Element reactivated.", zap.String("name", t.Name))
	m.emit(events.ElementReactivated{Header: m.header(), Element: t.Snapshot()})
}

func (m *Manager) unregister(el dom.Element, reason schemas.UnregisterReason) {
	t, ok := m.registry.Remove(el)
	if !ok {
		return
	}
	t.StopReactivation()
	if m.listenersAttached() {
		m.active.Unobserve(t)
	}

	m.lifecycle("Element unregistered.", zap.String("name", t.Name), zap.String("reason", string(reason)))
	m.emit(events.ElementUnregistered{
		Header:                   m.header(),
		Element:                  t.Snapshot(),
		Reason:                   reason,
		WasLastRegisteredElement: m.registry.Len() == 0,
	})
	if m.registry.ActiveCount() == 0 {
		m.detachListeners()
	}
}

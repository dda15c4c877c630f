package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/handler"
)

func (m *Manager) listenersAttached() bool { return m.listenCancel != nil }

// attachListeners wires the device tracker, the disconnect sweep and the
// active handler. Everything hangs off one context so detaching is a single
// cancel.
func (m *Manager) attachListeners() {
	if m.listenersAttached() || m.closed {
		return
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.listenCancel = cancel

	track := func(ev dom.Event) { m.do(func() { m.trackPointerType(ctx, ev) }) }
	m.host.AddListener(ctx, dom.EventPointerMove, track)
	m.host.AddListener(ctx, dom.EventPointerDown, track)
	m.host.AddListener(ctx, dom.EventMutation, func(ev dom.Event) {
		if ev.RemovedNodes == 0 {
			return
		}
		m.do(m.sweepDisconnected)
	})

	m.active.Connect(ctx)
	m.lifecycle("Global listeners attached.", zap.String("device", string(m.pointerType)))
}

// detachListeners tears down every host listener and observer.
func (m *Manager) detachListeners() {
	if !m.listenersAttached() {
		return
	}
	m.active.Disconnect()
	m.listenCancel()
	m.listenCancel = nil
	m.lifecycle("Global listeners detached.")
}

func (m *Manager) handlerFor(p dom.PointerType) handler.Handler {
	if p.IsTouch() {
		return m.touch
	}
	return m.pointer
}

// trackPointerType follows the input device. A new pointer type is
// reported; a new device family also swaps the handler.
func (m *Manager) trackPointerType(ctx context.Context, ev dom.Event) {
	if ctx.Err() != nil || ev.PointerType == "" || ev.PointerType == m.pointerType {
		return
	}
	old := m.pointerType
	m.pointerType = ev.PointerType
	m.emit(events.DeviceStrategyChanged{Header: m.header(), Old: old, New: ev.PointerType})

	next := m.handlerFor(ev.PointerType)
	if next == m.active {
		return
	}
	m.active.Disconnect()
	m.active = next
	m.active.Connect(ctx)
	m.lifecycle("Device strategy switched.", zap.String("from", string(old)), zap.String("to", string(ev.PointerType)))
}

// sweepDisconnected drops elements whose nodes left the document.
func (m *Manager) sweepDisconnected() {
	for _, t := range m.registry.Elements() {
		if !t.Element.IsConnected() {
			m.unregister(t.Element, schemas.ReasonDisconnected)
		}
	}
}

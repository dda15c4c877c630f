package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/predictor"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// Touch serves touch devices with one of two strategies: fire when an
// element first becomes visible, or fire when the element itself is touched.
// Either way an element is dropped from observation once it fires.
type Touch struct {
	d      predictor.Dispatcher
	host   dom.Host
	logger *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	strategy settings.TouchStrategy

	// viewport strategy
	observer dom.Observer
	// touch-start strategy
	listeners map[*registry.TrackedElement]context.CancelFunc
}

var _ Handler = (*Touch)(nil)

func NewTouch(d predictor.Dispatcher, host dom.Host, logger *zap.Logger) *Touch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Touch{
		d:         d,
		host:      host,
		logger:    logger.Named("touch"),
		listeners: make(map[*registry.TrackedElement]context.CancelFunc),
	}
}

// Strategy is the strategy in use, or empty while disconnected.
func (h *Touch) Strategy() settings.TouchStrategy { return h.strategy }

func (h *Touch) Connected() bool { return h.cancel != nil }

func (h *Touch) Connect(ctx context.Context) {
	if h.Connected() {
		return
	}
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.start(h.d.Settings().TouchDeviceStrategy)
	h.logger.Debug("Touch handler connected.", zap.String("strategy", string(h.strategy)))
}

func (h *Touch) Disconnect() {
	if !h.Connected() {
		return
	}
	h.stop()
	h.cancel()
	h.cancel = nil
	h.logger.Debug("Touch handler disconnected.")
}

func (h *Touch) Observe(t *registry.TrackedElement) {
	if !h.Connected() {
		return
	}
	switch h.strategy {
	case settings.TouchViewport:
		h.observer.Observe(t.Element)
	case settings.TouchOnTouchStart:
		h.listen(t)
	}
}

func (h *Touch) Unobserve(t *registry.TrackedElement) {
	if !h.Connected() {
		return
	}
	switch h.strategy {
	case settings.TouchViewport:
		h.observer.Unobserve(t.Element)
	case settings.TouchOnTouchStart:
		if cancel, ok := h.listeners[t]; ok {
			cancel()
			delete(h.listeners, t)
		}
	}
}

// ApplySettings swaps the strategy in place when it changes.
func (h *Touch) ApplySettings(changes []schemas.SettingChange) {
	if !h.Connected() || !settings.HasChanged(changes, settings.NameTouchDeviceStrategy) {
		return
	}
	next := h.d.Settings().TouchDeviceStrategy
	if next == h.strategy {
		return
	}
	h.stop()
	h.start(next)
	h.logger.Debug("Touch strategy switched.", zap.String("strategy", string(next)))
}

func (h *Touch) start(strategy settings.TouchStrategy) {
	h.strategy = strategy
	if strategy == settings.TouchViewport {
		var obs dom.Observer
		obs = h.host.NewIntersectionObserver(func(entries []dom.PositionEntry) {
			h.d.Do(func() {
				// A batch queued before a strategy swap belongs to a retired
				// observer.
				if h.observer != obs {
					return
				}
				h.handleIntersections(entries)
			})
		})
		h.observer = obs
	}
	for _, t := range h.d.Elements() {
		if t.Info.IsActive {
			h.Observe(t)
		}
	}
}

func (h *Touch) stop() {
	if h.observer != nil {
		h.observer.Disconnect()
		h.observer = nil
	}
	for t, cancel := range h.listeners {
		cancel()
		delete(h.listeners, t)
	}
	h.strategy = ""
}

func (h *Touch) listen(t *registry.TrackedElement) {
	if _, ok := h.listeners[t]; ok {
		return
	}
	ctx, cancel := context.WithCancel(h.ctx)
	h.listeners[t] = cancel
	h.host.AddElementListener(ctx, t.Element, dom.EventTouchStart, func(dom.Event) {
		h.d.Do(func() {
			if ctx.Err() != nil {
				return
			}
			h.Unobserve(t)
			h.d.CallCallback(t, schemas.TouchHit())
		})
	})
}

func (h *Touch) handleIntersections(entries []dom.PositionEntry) {
	if h.strategy != settings.TouchViewport {
		return
	}
	for _, entry := range entries {
		if !entry.IsIntersecting {
			continue
		}
		t, ok := h.d.Lookup(entry.Target)
		if !ok {
			continue
		}
		h.observer.Unobserve(entry.Target)
		h.d.CallCallback(t, schemas.ViewportHit())
	}
}

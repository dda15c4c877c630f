package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/predictor"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/schedule"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// Pointer serves mouse and pen devices. It owns the pointer trajectory and
// composes the mouse, scroll and tab predictors around one position
// observer.
type Pointer struct {
	d      predictor.Dispatcher
	host   dom.Host
	logger *zap.Logger

	trajectory *predictor.Trajectory
	mouse      *predictor.Mouse
	scroll     *predictor.Scroll
	tab        *predictor.Tab

	ctx       context.Context
	cancel    context.CancelFunc
	tabCancel context.CancelFunc
	observer  dom.Observer
}

var _ Handler = (*Pointer)(nil)

// NewPointer builds a disconnected pointer handler sized from the current
// settings.
func NewPointer(d predictor.Dispatcher, host dom.Host, frames schedule.FrameScheduler, logger *zap.Logger) (*Pointer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	trajectory, err := predictor.NewTrajectory(d.Settings().PositionHistorySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create trajectory: %w", err)
	}
	return &Pointer{
		d:          d,
		host:       host,
		logger:     logger.Named("pointer"),
		trajectory: trajectory,
		mouse:      predictor.NewMouse(d, host, frames, trajectory),
		scroll:     predictor.NewScroll(d, trajectory),
		tab:        predictor.NewTab(d, host),
	}, nil
}

// Trajectory exposes the owned pointer state to read-only consumers.
func (p *Pointer) Trajectory() predictor.PointerState { return p.trajectory }

func (p *Pointer) Connected() bool { return p.cancel != nil }

func (p *Pointer) Connect(ctx context.Context) {
	if p.Connected() {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mouse.Connect(p.ctx)
	if p.d.Settings().EnableTabPrediction {
		p.connectTab()
	}

	p.observer = p.host.NewPositionObserver(func(entries []dom.PositionEntry) {
		p.d.Do(func() { p.handlePositions(entries) })
	})
	for _, t := range p.d.Elements() {
		if t.Info.IsActive {
			p.observer.Observe(t.Element)
		}
	}
	p.logger.Debug("Pointer handler connected.")
}

func (p *Pointer) Disconnect() {
	if !p.Connected() {
		return
	}
	p.disconnectTab()
	p.mouse.Disconnect()
	p.observer.Disconnect()
	p.observer = nil
	p.cancel()
	p.cancel = nil
	p.logger.Debug("Pointer handler disconnected.")
}

func (p *Pointer) Observe(t *registry.TrackedElement) {
	if p.observer != nil {
		p.observer.Observe(t.Element)
	}
}

func (p *Pointer) Unobserve(t *registry.TrackedElement) {
	if p.observer != nil {
		p.observer.Unobserve(t.Element)
	}
}

func (p *Pointer) ApplySettings(changes []schemas.SettingChange) {
	s := p.d.Settings()
	if settings.HasChanged(changes, settings.NamePositionHistorySize) {
		if err := p.trajectory.Resize(s.PositionHistorySize); err != nil {
			p.logger.Error("Failed to resize pointer history.", zap.Error(err))
		}
	}
	if settings.HasChanged(changes, settings.NameEnableTabPrediction) && p.Connected() {
		if s.EnableTabPrediction {
			p.connectTab()
		} else {
			p.disconnectTab()
		}
	}
}

func (p *Pointer) connectTab() {
	if p.tabCancel != nil {
		return
	}
	var ctx context.Context
	ctx, p.tabCancel = context.WithCancel(p.ctx)
	p.tab.Connect(ctx)
}

func (p *Pointer) disconnectTab() {
	if p.tabCancel == nil {
		return
	}
	p.tabCancel()
	p.tabCancel = nil
	p.tab.Disconnect()
}

// handlePositions processes one observer batch: it refreshes bounds and
// visibility, then runs scroll prediction (or a hover check when scroll
// prediction is off) for each visible element.
func (p *Pointer) handlePositions(entries []dom.PositionEntry) {
	if !p.Connected() {
		return
	}
	s := p.d.Settings()
	defer p.scroll.EndBatch()

	for _, entry := range entries {
		t, ok := p.d.Lookup(entry.Target)
		if !ok {
			continue
		}
		previous := t.Bounds.OriginalRect

		var props []events.UpdatedProp
		if t.IsIntersectingViewport != entry.IsIntersecting {
			t.IsIntersectingViewport = entry.IsIntersecting
			props = append(props, events.PropVisibility)
		}
		if entry.IsIntersecting && t.UpdateRect(entry.BoundingBox) {
			props = append(props, events.PropBounds)
		}
		if len(props) > 0 && p.d.HasListeners(events.KindElementDataUpdated) {
			p.d.Emit(events.ElementDataUpdated{
				Header:  events.Header{Timestamp: p.d.Now()},
				Element: t.Snapshot(),
				Props:   props,
			})
		}

		if !entry.IsIntersecting {
			continue
		}
		if s.EnableScrollPrediction {
			p.scroll.Consider(t, previous)
		} else {
			p.mouse.CheckHover(t)
		}
	}
}

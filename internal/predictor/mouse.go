package predictor

import (
	"context"
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/schedule"
)

// Mouse turns pointer movement into hover or trajectory hits. Raw moves are
// coalesced so at most one computation runs per frame, using the latest
// event seen.
type Mouse struct {
	d          Dispatcher
	host       dom.Host
	frames     schedule.FrameScheduler
	trajectory *Trajectory

	connected   bool
	pending     *dom.Event
	cancelFrame func()
	// frame identifies the outstanding frame request. A flush carrying an
	// older value was cancelled after it had already fired.
	frame uint64
}

func NewMouse(d Dispatcher, host dom.Host, frames schedule.FrameScheduler, trajectory *Trajectory) *Mouse {
	return &Mouse{
		d:          d,
		host:       host,
		frames:     frames,
		trajectory: trajectory,
	}
}

// Connect starts listening for pointer movement until ctx is done or
// Disconnect is called.
func (m *Mouse) Connect(ctx context.Context) {
	m.connected = true
	m.host.AddListener(ctx, dom.EventPointerMove, func(ev dom.Event) {
		m.d.Do(func() { m.onMove(ev) })
	})
}

// Disconnect drops any queued frame.
func (m *Mouse) Disconnect() {
	m.connected = false
	m.pending = nil
	m.frame++
	if m.cancelFrame != nil {
		m.cancelFrame()
		m.cancelFrame = nil
	}
}

func (m *Mouse) onMove(ev dom.Event) {
	if !m.connected || ev.PointerType.IsTouch() {
		return
	}
	m.pending = &ev
	if m.cancelFrame != nil {
		return
	}
	m.frame++
	frame := m.frame
	m.cancelFrame = m.frames.RequestFrame(func() {
		m.d.Do(func() { m.flush(frame) })
	})
}

func (m *Mouse) flush(frame uint64) {
	if frame != m.frame {
		return
	}
	m.cancelFrame = nil
	ev := m.pending
	m.pending = nil
	if ev == nil || !m.connected {
		return
	}
	at := ev.Time
	if at.IsZero() {
		at = m.d.Now()
	}
	m.Process(ev.Point, at)
}

// Process runs one prediction step for the pointer at p.
func (m *Mouse) Process(p geometry.Point, at time.Time) {
	s := m.d.Settings()
	m.trajectory.Update(p, at, s.EnableMousePrediction, s.TrajectoryPredictionTime)
	current := m.trajectory.Current()
	predicted := m.trajectory.Predicted()

	for _, t := range m.d.Elements() {
		if !t.Eligible() {
			continue
		}
		expanded := t.Bounds.ExpandedRect
		if !s.EnableMousePrediction {
			if geometry.PointInRect(current, expanded) {
				m.d.CallCallback(t, schemas.MouseHit(schemas.SubTypeHover))
				// Hover mode guarantees a single callback per move.
				return
			}
			continue
		}
		if geometry.SegmentIntersectsRect(current, predicted, expanded) {
			m.d.CallCallback(t, schemas.MouseHit(schemas.SubTypeTrajectory))
		}
	}

	if m.d.HasListeners(events.KindMouseTrajectoryUpdate) {
		m.d.Emit(events.MouseTrajectoryUpdate{
			Header:            events.Header{Timestamp: at},
			Trajectory:        m.trajectory.Snapshot(),
			PredictionEnabled: s.EnableMousePrediction,
		})
	}
}

// CheckHover fires a hover hit for t if the pointer currently rests inside it.
func (m *Mouse) CheckHover(t *registry.TrackedElement) {
	if t.Eligible() && geometry.PointInRect(m.trajectory.Current(), t.Bounds.ExpandedRect) {
		m.d.CallCallback(t, schemas.MouseHit(schemas.SubTypeHover))
	}
}

package predictor

import (
	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/registry"
)

// scrollDeadZone is the smallest box displacement, in pixels, read as scroll.
const scrollDeadZone = 1.0

// ScrollDirectionFromDelta infers the page scroll direction from how an
// element's box moved. The box moving up means the page scrolled down.
func ScrollDirectionFromDelta(oldRect, newRect geometry.Rect) schemas.ScrollDirection {
	dy := newRect.Top - oldRect.Top
	dx := newRect.Left - oldRect.Left
	switch {
	case dy < -scrollDeadZone:
		return schemas.ScrollDown
	case dy > scrollDeadZone:
		return schemas.ScrollUp
	case dx < -scrollDeadZone:
		return schemas.ScrollRight
	case dx > scrollDeadZone:
		return schemas.ScrollLeft
	default:
		return schemas.ScrollNone
	}
}

// PredictScrollPoint offsets current by margin in the scroll direction.
func PredictScrollPoint(current geometry.Point, dir schemas.ScrollDirection, margin float64) geometry.Point {
	switch dir {
	case schemas.ScrollDown:
		return geometry.Point{X: current.X, Y: current.Y + margin}
	case schemas.ScrollUp:
		return geometry.Point{X: current.X, Y: current.Y - margin}
	case schemas.ScrollRight:
		return geometry.Point{X: current.X + margin, Y: current.Y}
	case schemas.ScrollLeft:
		return geometry.Point{X: current.X - margin, Y: current.Y}
	default:
		return current
	}
}

// Scroll projects the pointer along the scroll direction once per observer
// batch and fires on elements crossing that projection.
type Scroll struct {
	d       Dispatcher
	pointer PointerState

	direction *schemas.ScrollDirection
	predicted *geometry.Point
}

func NewScroll(d Dispatcher, pointer PointerState) *Scroll {
	return &Scroll{d: d, pointer: pointer}
}

// Consider tests one element of the current batch. previous is the rect the
// element had before this batch updated it.
func (s *Scroll) Consider(t *registry.TrackedElement, previous geometry.Rect) {
	if !t.Eligible() {
		return
	}
	if s.direction == nil {
		dir := ScrollDirectionFromDelta(previous, t.Bounds.OriginalRect)
		s.direction = &dir
	}
	if *s.direction == schemas.ScrollNone {
		return
	}
	if s.predicted == nil {
		p := PredictScrollPoint(s.pointer.Current(), *s.direction, s.d.Settings().ScrollMargin)
		s.predicted = &p
	}
	if geometry.SegmentIntersectsRect(s.pointer.Current(), *s.predicted, t.Bounds.ExpandedRect) {
		s.d.CallCallback(t, schemas.ScrollHit(*s.direction))
	}
}

// EndBatch reports the batch's projection and clears it so the next batch
// starts fresh.
func (s *Scroll) EndBatch() {
	if s.direction != nil && s.predicted != nil && s.d.HasListeners(events.KindScrollTrajectoryUpdate) {
		s.d.Emit(events.ScrollTrajectoryUpdate{
			Header:    events.Header{Timestamp: s.d.Now()},
			Current:   s.pointer.Current(),
			Predicted: *s.predicted,
			Direction: *s.direction,
		})
	}
	s.direction = nil
	s.predicted = nil
}

// Direction is the direction computed for the batch in progress, if any.
func (s *Scroll) Direction() (schemas.ScrollDirection, bool) {
	if s.direction == nil {
		return schemas.ScrollNone, false
	}
	return *s.direction, true
}

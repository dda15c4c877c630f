// internal/registry/element.go
package registry

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/schedule"
)

// UnnamedElement is the name given to elements with neither an explicit name
// nor an element-provided ID.
const UnnamedElement = "unnamed"

// Callback is the user work run when an element is predicted to be hit. A
// returned error or a panic is recorded as a failed run.
type Callback func(ctx context.Context) error

// TrackedElement is the engine's state for one registered element.
type TrackedElement struct {
	ID                     string
	Element                dom.Element
	Callback               Callback
	Name                   string
	Meta                   map[string]string
	Bounds                 geometry.ElementBounds
	UsesDefaultHitSlop     bool
	IsIntersectingViewport bool
	RegisterCount          int
	Info                   schemas.CallbackInfo

	reactivateTimer schedule.Timer
}

// NewTrackedElement creates an active element measured at rect.
func NewTrackedElement(el dom.Element, cb Callback, name string, meta map[string]string,
	rect geometry.Rect, slop geometry.HitSlop, usesDefaultSlop bool, reactivateAfter time.Duration) *TrackedElement {

	if name == "" {
		name = el.ID()
	}
	if name == "" {
		name = UnnamedElement
	}
	if meta == nil {
		meta = map[string]string{}
	}
	return &TrackedElement{
		ID:                     uuid.NewString(),
		Element:                el,
		Callback:               cb,
		Name:                   name,
		Meta:                   meta,
		Bounds:                 geometry.NewElementBounds(rect, slop),
		UsesDefaultHitSlop:     usesDefaultSlop,
		IsIntersectingViewport: true,
		RegisterCount:          1,
		Info: schemas.CallbackInfo{
			ReactivateAfter: reactivateAfter,
			IsActive:        true,
		},
	}
}

// Eligible reports whether predictors may fire this element's callback.
func (t *TrackedElement) Eligible() bool {
	return t.Info.IsActive && !t.Info.IsRunning && t.IsIntersectingViewport
}

// CanRun reports whether a dispatch would be accepted, independent of
// viewport visibility.
func (t *TrackedElement) CanRun() bool {
	return t.Info.IsActive && !t.Info.IsRunning
}

// MarkRunning moves the element into the running state for a new invocation.
func (t *TrackedElement) MarkRunning(now time.Time) {
	t.StopReactivation()
	t.Info.IsRunning = true
	t.Info.IsActive = false
	t.Info.FiredCount++
	t.Info.LastInvokedAt = now
}

// MarkCompleted records the outcome of a run and leaves the element inactive.
func (t *TrackedElement) MarkCompleted(now time.Time, elapsed time.Duration, status schemas.CallbackStatus, errMsg string) {
	t.Info.IsRunning = false
	t.Info.IsActive = false
	t.Info.LastCompletedAt = now
	t.Info.LastRuntime = elapsed
	t.Info.LastStatus = status
	t.Info.LastErrorMessage = errMsg
}

// Activate makes the element eligible again and drops any pending timer.
func (t *TrackedElement) Activate() {
	t.StopReactivation()
	t.Info.IsActive = true
}

// ReactivatesAutomatically reports whether a timer should be armed after a run.
func (t *TrackedElement) ReactivatesAutomatically() bool {
	return t.Info.ReactivateAfter >= 0 && t.Info.ReactivateAfter < schemas.ReactivateNever
}

// SetReactivationTimer replaces any pending timer with timer.
func (t *TrackedElement) SetReactivationTimer(timer schedule.Timer) {
	t.StopReactivation()
	t.reactivateTimer = timer
}

// StopReactivation cancels a pending reactivation, if any.
func (t *TrackedElement) StopReactivation() {
	if t.reactivateTimer != nil {
		t.reactivateTimer.Stop()
		t.reactivateTimer = nil
	}
}

// HasPendingReactivation reports whether a reactivation timer is armed.
func (t *TrackedElement) HasPendingReactivation() bool {
	return t.reactivateTimer != nil
}

// UpdateRect re-measures the element. It reports whether the rect changed.
func (t *TrackedElement) UpdateRect(rect geometry.Rect) bool {
	if geometry.RectsEqual(rect, t.Bounds.OriginalRect) {
		return false
	}
	t.Bounds = t.Bounds.WithRect(rect)
	return true
}

// SetHitSlop changes the padding and recomputes the expanded rect.
func (t *TrackedElement) SetHitSlop(slop geometry.HitSlop) {
	t.Bounds = t.Bounds.WithHitSlop(slop)
}

// Snapshot copies the element's state for events and inspection.
func (t *TrackedElement) Snapshot() schemas.ElementData {
	return schemas.ElementData{
		ID:                     t.ID,
		Element:                t.Element,
		Name:                   t.Name,
		Meta:                   maps.Clone(t.Meta),
		Bounds:                 t.Bounds,
		UsesDefaultHitSlop:     t.UsesDefaultHitSlop,
		IsIntersectingViewport: t.IsIntersectingViewport,
		RegisterCount:          t.RegisterCount,
		CallbackInfo:           t.Info,
	}
}

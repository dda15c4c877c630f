// internal/predictor/predictor.go
package predictor

import (
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// Dispatcher is the coordinator surface predictors and handlers call back
// into. Every method except Do expects the coordinator lock to be held; Do
// acquires it.
type Dispatcher interface {
	// Elements is a stable snapshot of tracked elements in registration order.
	Elements() []*registry.TrackedElement
	Lookup(el dom.Element) (*registry.TrackedElement, bool)
	// CallCallback runs the element's callback if it is allowed to run.
	CallCallback(t *registry.TrackedElement, hit schemas.HitType)
	Settings() settings.Settings
	// Emit queues ev for delivery once the lock is released.
	Emit(ev events.Event)
	HasListeners(kind events.Kind) bool
	Now() time.Time
	// Do runs fn under the coordinator lock. Host callbacks enter through it.
	Do(fn func())
}

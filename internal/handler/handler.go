// Package handler groups predictors into device strategies. Exactly one
// handler is connected at a time; the engine swaps them when the input
// device family changes.
package handler

import (
	"context"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/registry"
)

// Handler is a device strategy. All methods run under the engine lock.
type Handler interface {
	// Connect attaches host listeners and observes every active element.
	// Listeners live until Disconnect or until ctx is done.
	Connect(ctx context.Context)
	Disconnect()
	Connected() bool

	// Observe starts watching an element registered or reactivated while
	// the handler is connected.
	Observe(t *registry.TrackedElement)
	// Unobserve stops watching an element that fired or left the registry.
	Unobserve(t *registry.TrackedElement)

	// ApplySettings reacts to changed settings.
	ApplySettings(changes []schemas.SettingChange)
}

// internal/dom/dom.go
package dom

import (
	"context"
	"time"

	"github.com/xkilldash9x/foresight/internal/geometry"
)

// Element is an opaque handle to a node the host can measure. Implementations
// must be comparable (pointer types are) since the engine keys its registry on
// them.
type Element interface {
	// ID is the element-provided identifier, used as a fallback name.
	ID() string
	// BoundingBox is the element's current layout rect.
	BoundingBox() geometry.Rect
	// IsConnected reports whether the node is still attached to the document.
	IsConnected() bool
}

// PointerType identifies the input device behind a pointer event.
type PointerType string

const (
	PointerMouse PointerType = "mouse"
	PointerPen   PointerType = "pen"
	PointerTouch PointerType = "touch"
)

// IsTouch reports whether the pointer belongs to the touch handler family.
func (p PointerType) IsTouch() bool { return p == PointerTouch }

// EventType enumerates the host events the engine listens to.
type EventType string

const (
	EventPointerMove EventType = "pointermove"
	EventPointerDown EventType = "pointerdown"
	EventKeyDown     EventType = "keydown"
	EventFocusIn     EventType = "focusin"
	EventTouchStart  EventType = "touchstart"
	// EventMutation reports a change to the document structure.
	EventMutation EventType = "mutation"
)

// KeyTab is the Key value of a Tab keydown.
const KeyTab = "Tab"

// Event is a host input or document notification. Only the fields relevant
// to Type are populated.
type Event struct {
	Type        EventType
	Time        time.Time
	PointerType PointerType
	Point       geometry.Point
	Key         string
	ShiftKey    bool
	// Target is the focused element for focusin, the touched one for touchstart.
	Target Element
	// AddedNodes and RemovedNodes are set for EventMutation.
	AddedNodes   int
	RemovedNodes int
}

// Listener receives host events.
type Listener func(Event)

// PositionEntry is one element's layout/visibility notification.
type PositionEntry struct {
	Target         Element
	BoundingBox    geometry.Rect
	IsIntersecting bool
}

// Observer watches a set of elements and reports batched PositionEntry
// notifications to the callback it was created with. The callback is never
// invoked from inside Observe, Unobserve or Disconnect. Observing an element
// produces an initial notification for it.
type Observer interface {
	Observe(el Element)
	Unobserve(el Element)
	Disconnect()
}

// ObserverCallback receives one batch of notifications.
type ObserverCallback func(entries []PositionEntry)

// ConnectionType is the effective network class reported by the host.
type ConnectionType string

const (
	ConnectionSlow2G ConnectionType = "slow-2g"
	Connection2G     ConnectionType = "2g"
	Connection3G     ConnectionType = "3g"
	Connection4G     ConnectionType = "4g"
)

var connectionRank = map[ConnectionType]int{
	ConnectionSlow2G: 0,
	Connection2G:     1,
	Connection3G:     2,
	Connection4G:     3,
}

// Rank orders connection types from slowest to fastest. Unknown types rank
// as the fastest so an unreported connection never blocks registration.
func (c ConnectionType) Rank() int {
	if r, ok := connectionRank[c]; ok {
		return r
	}
	return connectionRank[Connection4G]
}

// Valid reports whether c is one of the known connection types.
func (c ConnectionType) Valid() bool {
	_, ok := connectionRank[c]
	return ok
}

// ConnectionInfo describes the host's network conditions.
type ConnectionInfo struct {
	EffectiveType ConnectionType `json:"effectiveType"`
	SaveData      bool           `json:"saveData"`
}

// IsLimited reports whether the connection falls below minimum or the user
// asked to save data.
func (c ConnectionInfo) IsLimited(minimum ConnectionType) bool {
	if c.SaveData {
		return true
	}
	if c.EffectiveType == "" {
		return false
	}
	return c.EffectiveType.Rank() < minimum.Rank()
}

// Host is everything the engine consumes from the document it runs in.
//
// Listener registrations live until ctx is done; cancelling one context
// detaches every listener registered with it.
type Host interface {
	AddListener(ctx context.Context, typ EventType, fn Listener)
	AddElementListener(ctx context.Context, el Element, typ EventType, fn Listener)

	// NewPositionObserver reports layout and visibility changes.
	NewPositionObserver(cb ObserverCallback) Observer
	// NewIntersectionObserver reports viewport entry and exit only.
	NewIntersectionObserver(cb ObserverCallback) Observer

	// FocusOrder lists keyboard-focusable elements in tab order.
	FocusOrder() []Element

	Connection() ConnectionInfo
	// PrimaryPointer is the device the host believes is in use before any
	// pointer event arrives.
	PrimaryPointer() PointerType
}

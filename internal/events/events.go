// internal/events/events.go
package events

import (
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
)

// Kind tags each event variant.
type Kind string

const (
	KindElementRegistered      Kind = "elementRegistered"
	KindElementReactivated     Kind = "elementReactivated"
	KindElementUnregistered    Kind = "elementUnregistered"
	KindElementDataUpdated     Kind = "elementDataUpdated"
	KindCallbackInvoked        Kind = "callbackInvoked"
	KindCallbackCompleted      Kind = "callbackCompleted"
	KindMouseTrajectoryUpdate  Kind = "mouseTrajectoryUpdate"
	KindScrollTrajectoryUpdate Kind = "scrollTrajectoryUpdate"
	KindSettingsChanged        Kind = "settingsChanged"
	KindDeviceStrategyChanged  Kind = "deviceStrategyChanged"
)

// AllKinds lists every event kind in a stable order.
var AllKinds = []Kind{
	KindElementRegistered,
	KindElementReactivated,
	KindElementUnregistered,
	KindElementDataUpdated,
	KindCallbackInvoked,
	KindCallbackCompleted,
	KindMouseTrajectoryUpdate,
	KindScrollTrajectoryUpdate,
	KindSettingsChanged,
	KindDeviceStrategyChanged,
}

// Event is implemented by every variant below.
type Event interface {
	Kind() Kind
	At() time.Time
}

// Header carries the fields shared by every event.
type Header struct {
	Timestamp time.Time `json:"timestamp"`
}

func (h Header) At() time.Time { return h.Timestamp }

// UpdatedProp names what changed in an ElementDataUpdated event.
type UpdatedProp string

const (
	PropBounds     UpdatedProp = "bounds"
	PropVisibility UpdatedProp = "visibility"
)

type ElementRegistered struct {
	Header
	Element schemas.ElementData `json:"element"`
}

type ElementReactivated struct {
	Header
	Element schemas.ElementData `json:"element"`
}

type ElementUnregistered struct {
	Header
	Element                  schemas.ElementData      `json:"element"`
	Reason                   schemas.UnregisterReason `json:"reason"`
	WasLastRegisteredElement bool                     `json:"wasLastRegisteredElement"`
}

type ElementDataUpdated struct {
	Header
	Element schemas.ElementData `json:"element"`
	Props   []UpdatedProp       `json:"updatedProps"`
}

type CallbackInvoked struct {
	Header
	Element schemas.ElementData `json:"element"`
	HitType schemas.HitType     `json:"hitType"`
}

type CallbackCompleted struct {
	Header
	Element              schemas.ElementData    `json:"element"`
	HitType              schemas.HitType        `json:"hitType"`
	Elapsed              time.Duration          `json:"elapsed"`
	Status               schemas.CallbackStatus `json:"status"`
	ErrorMessage         string                 `json:"errorMessage,omitempty"`
	WasLastActiveElement bool                   `json:"wasLastActiveElement"`
}

type MouseTrajectoryUpdate struct {
	Header
	Trajectory        schemas.TrajectorySnapshot `json:"trajectory"`
	PredictionEnabled bool                       `json:"predictionEnabled"`
}

type ScrollTrajectoryUpdate struct {
	Header
	Current   geometry.Point          `json:"current"`
	Predicted geometry.Point          `json:"predicted"`
	Direction schemas.ScrollDirection `json:"direction"`
}

type SettingsChanged struct {
	Header
	Changes []schemas.SettingChange `json:"changes"`
}

type DeviceStrategyChanged struct {
	Header
	Old dom.PointerType `json:"old"`
	New dom.PointerType `json:"new"`
}

func (ElementRegistered) Kind() Kind      { return KindElementRegistered }
func (ElementReactivated) Kind() Kind     { return KindElementReactivated }
func (ElementUnregistered) Kind() Kind    { return KindElementUnregistered }
func (ElementDataUpdated) Kind() Kind     { return KindElementDataUpdated }
func (CallbackInvoked) Kind() Kind        { return KindCallbackInvoked }
func (CallbackCompleted) Kind() Kind      { return KindCallbackCompleted }
func (MouseTrajectoryUpdate) Kind() Kind  { return KindMouseTrajectoryUpdate }
func (ScrollTrajectoryUpdate) Kind() Kind { return KindScrollTrajectoryUpdate }
func (SettingsChanged) Kind() Kind        { return KindSettingsChanged }
func (DeviceStrategyChanged) Kind() Kind  { return KindDeviceStrategyChanged }

package schemas

import (
	"time"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
)

// -- Hit Classification --

// CallbackKind names the predictor family that caused a callback.
type CallbackKind string

const (
	KindMouse    CallbackKind = "mouse"
	KindTab      CallbackKind = "tab"
	KindScroll   CallbackKind = "scroll"
	KindTouch    CallbackKind = "touch"
	KindViewport CallbackKind = "viewport"
)

// Subtypes refine a CallbackKind.
const (
	SubTypeHover      = "hover"
	SubTypeTrajectory = "trajectory"
	SubTypeForwards   = "forwards"
	SubTypeReverse    = "reverse"
)

// ScrollDirection is the inferred page scroll direction.
type ScrollDirection string

const (
	ScrollNone  ScrollDirection = "none"
	ScrollUp    ScrollDirection = "up"
	ScrollDown  ScrollDirection = "down"
	ScrollLeft  ScrollDirection = "left"
	ScrollRight ScrollDirection = "right"
)

// HitType identifies what triggered a callback.
type HitType struct {
	Kind    CallbackKind `json:"kind"`
	SubType string       `json:"subType,omitempty"`
}

func MouseHit(subType string) HitType { return HitType{Kind: KindMouse, SubType: subType} }

func TabHit(reverse bool) HitType {
	if reverse {
		return HitType{Kind: KindTab, SubType: SubTypeReverse}
	}
	return HitType{Kind: KindTab, SubType: SubTypeForwards}
}

func ScrollHit(dir ScrollDirection) HitType {
	return HitType{Kind: KindScroll, SubType: string(dir)}
}

func TouchHit() HitType    { return HitType{Kind: KindTouch} }
func ViewportHit() HitType { return HitType{Kind: KindViewport} }

// HitCounters accumulates callback hits by kind and subtype.
type HitCounters struct {
	Total int `json:"total"`
	Mouse struct {
		Hover      int `json:"hover"`
		Trajectory int `json:"trajectory"`
	} `json:"mouse"`
	Tab struct {
		Forwards int `json:"forwards"`
		Reverse  int `json:"reverse"`
	} `json:"tab"`
	Scroll struct {
		Up    int `json:"up"`
		Down  int `json:"down"`
		Left  int `json:"left"`
		Right int `json:"right"`
	} `json:"scroll"`
	Touch    int `json:"touch"`
	Viewport int `json:"viewport"`
}

// Record counts one hit.
func (c *HitCounters) Record(hit HitType) {
	c.Total++
	switch hit.Kind {
	case KindMouse:
		if hit.SubType == SubTypeHover {
			c.Mouse.Hover++
		} else {
			c.Mouse.Trajectory++
		}
	case KindTab:
		if hit.SubType == SubTypeReverse {
			c.Tab.Reverse++
		} else {
			c.Tab.Forwards++
		}
	case KindScroll:
		switch ScrollDirection(hit.SubType) {
		case ScrollUp:
			c.Scroll.Up++
		case ScrollDown:
			c.Scroll.Down++
		case ScrollLeft:
			c.Scroll.Left++
		case ScrollRight:
			c.Scroll.Right++
		}
	case KindTouch:
		c.Touch++
	case KindViewport:
		c.Viewport++
	}
}

// -- Element State --

// CallbackStatus is the outcome of the most recent callback run.
type CallbackStatus string

const (
	StatusNone    CallbackStatus = ""
	StatusSuccess CallbackStatus = "success"
	StatusError   CallbackStatus = "error"
)

// ReactivateNever disables automatic reactivation.
const ReactivateNever = time.Duration(1<<63 - 1)

// UnregisterReason explains why an element left the registry.
type UnregisterReason string

const (
	ReasonAPICall      UnregisterReason = "apiCall"
	ReasonDisconnected UnregisterReason = "disconnected"
	ReasonShutdown     UnregisterReason = "shutdown"
)

// CallbackInfo is the callback state machine of a tracked element.
type CallbackInfo struct {
	FiredCount       int            `json:"firedCount"`
	LastInvokedAt    time.Time      `json:"lastInvokedAt"`
	LastCompletedAt  time.Time      `json:"lastCompletedAt"`
	LastRuntime      time.Duration  `json:"lastRuntime"`
	LastStatus       CallbackStatus `json:"lastStatus,omitempty"`
	LastErrorMessage string         `json:"lastErrorMessage,omitempty"`
	ReactivateAfter  time.Duration  `json:"reactivateAfter"`
	IsActive         bool           `json:"isActive"`
	IsRunning        bool           `json:"isRunning"`
}

// ElementData is a point-in-time copy of a tracked element.
type ElementData struct {
	ID                     string                 `json:"id"`
	Element                dom.Element            `json:"-"`
	Name                   string                 `json:"name"`
	Meta                   map[string]string      `json:"meta,omitempty"`
	Bounds                 geometry.ElementBounds `json:"bounds"`
	UsesDefaultHitSlop     bool                   `json:"usesDefaultHitSlop"`
	IsIntersectingViewport bool                   `json:"isIntersectingViewport"`
	RegisterCount          int                    `json:"registerCount"`
	CallbackInfo           CallbackInfo           `json:"callbackInfo"`
}

// -- Trajectory --

// TimedPoint is a pointer sample.
type TimedPoint struct {
	Point geometry.Point `json:"point"`
	Time  time.Time      `json:"time"`
}

// TrajectorySnapshot is a copy of the pointer trajectory state.
type TrajectorySnapshot struct {
	History   []TimedPoint   `json:"history"`
	Current   geometry.Point `json:"current"`
	Predicted geometry.Point `json:"predicted"`
}

// -- Settings --

// SettingChange records one setting whose value actually changed.
type SettingChange struct {
	Setting  string `json:"setting"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

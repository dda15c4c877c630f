// internal/settings/settings.go
package settings

import (
	"time"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"go.uber.org/zap"
)

// TouchStrategy selects how touch devices trigger callbacks.
type TouchStrategy string

const (
	// TouchOnTouchStart fires when the element itself receives a touch start.
	TouchOnTouchStart TouchStrategy = "onTouchStart"
	// TouchViewport fires the first time the element becomes visible.
	TouchViewport TouchStrategy = "viewport"
)

func (t TouchStrategy) Valid() bool {
	return t == TouchOnTouchStart || t == TouchViewport
}

// Setting names as reported in change notifications.
const (
	NamePositionHistorySize      = "positionHistorySize"
	NameTrajectoryPredictionTime = "trajectoryPredictionTime"
	NameScrollMargin             = "scrollMargin"
	NameTabOffset                = "tabOffset"
	NameEnableMousePrediction    = "enableMousePrediction"
	NameEnableScrollPrediction   = "enableScrollPrediction"
	NameEnableTabPrediction      = "enableTabPrediction"
	NameDefaultHitSlop           = "defaultHitSlop"
	NameTouchDeviceStrategy      = "touchDeviceStrategy"
	NameMinimumConnectionType    = "minimumConnectionType"
	NameEnableManagerLogging     = "enableManagerLogging"
)

// Range is an inclusive clamp interval.
type Range[T int | float64 | time.Duration] struct {
	Min, Max T
}

// Clamp limits v to the range.
func (r Range[T]) Clamp(v T) T {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Documented limits for the numeric settings.
var (
	PositionHistorySizeRange      = Range[int]{Min: 2, Max: 30}
	TrajectoryPredictionTimeRange = Range[time.Duration]{Min: 10 * time.Millisecond, Max: 200 * time.Millisecond}
	ScrollMarginRange             = Range[float64]{Min: 30, Max: 300}
	TabOffsetRange                = Range[int]{Min: 0, Max: 20}
)

// Settings is the engine-wide configuration.
type Settings struct {
	PositionHistorySize      int                `json:"positionHistorySize"`
	TrajectoryPredictionTime time.Duration      `json:"trajectoryPredictionTime"`
	ScrollMargin             float64            `json:"scrollMargin"`
	TabOffset                int                `json:"tabOffset"`
	EnableMousePrediction    bool               `json:"enableMousePrediction"`
	EnableScrollPrediction   bool               `json:"enableScrollPrediction"`
	EnableTabPrediction      bool               `json:"enableTabPrediction"`
	DefaultHitSlop           geometry.HitSlop   `json:"defaultHitSlop"`
	TouchDeviceStrategy      TouchStrategy      `json:"touchDeviceStrategy"`
	MinimumConnectionType    dom.ConnectionType `json:"minimumConnectionType"`
	EnableManagerLogging     bool               `json:"enableManagerLogging"`
}

// Defaults returns the out-of-the-box settings.
func Defaults() Settings {
	return Settings{
		PositionHistorySize:      8,
		TrajectoryPredictionTime: 120 * time.Millisecond,
		ScrollMargin:             150,
		TabOffset:                2,
		EnableMousePrediction:    true,
		EnableScrollPrediction:   true,
		EnableTabPrediction:      true,
		DefaultHitSlop:           geometry.HitSlop{},
		TouchDeviceStrategy:      TouchOnTouchStart,
		MinimumConnectionType:    dom.Connection3G,
	}
}

// Partial carries the subset of settings a caller wants to change. Nil
// fields are left untouched.
type Partial struct {
	PositionHistorySize      *int
	TrajectoryPredictionTime *time.Duration
	ScrollMargin             *float64
	TabOffset                *int
	EnableMousePrediction    *bool
	EnableScrollPrediction   *bool
	EnableTabPrediction      *bool
	DefaultHitSlop           *geometry.HitSlop
	TouchDeviceStrategy      *TouchStrategy
	MinimumConnectionType    *dom.ConnectionType
	EnableManagerLogging     *bool
}

// Ptr is a convenience for building Partial literals.
func Ptr[T any](v T) *T { return &v }

// New returns the defaults with p applied on top.
func New(p Partial, logger *zap.Logger) Settings {
	s, _ := Apply(Defaults(), p, logger)
	return s
}

// Apply validates and clamps p, merges it into cur and returns the result
// along with one change per setting whose value actually differs. Clamped or
// rejected values are logged at Warn.
func Apply(cur Settings, p Partial, logger *zap.Logger) (Settings, []schemas.SettingChange) {
	if logger == nil {
		logger = zap.NewNop()
	}
	next := cur
	var changes []schemas.SettingChange
	record := func(name string, oldV, newV any) {
		changes = append(changes, schemas.SettingChange{Setting: name, OldValue: oldV, NewValue: newV})
	}

	if p.PositionHistorySize != nil {
		v := clampLogged(logger, NamePositionHistorySize, *p.PositionHistorySize, PositionHistorySizeRange)
		if v != cur.PositionHistorySize {
			next.PositionHistorySize = v
			record(NamePositionHistorySize, cur.PositionHistorySize, v)
		}
	}
	if p.TrajectoryPredictionTime != nil {
		v := clampLogged(logger, NameTrajectoryPredictionTime, *p.TrajectoryPredictionTime, TrajectoryPredictionTimeRange)
		if v != cur.TrajectoryPredictionTime {
			next.TrajectoryPredictionTime = v
			record(NameTrajectoryPredictionTime, cur.TrajectoryPredictionTime, v)
		}
	}
	if p.ScrollMargin != nil {
		v := clampLogged(logger, NameScrollMargin, *p.ScrollMargin, ScrollMarginRange)
		if v != cur.ScrollMargin {
			next.ScrollMargin = v
			record(NameScrollMargin, cur.ScrollMargin, v)
		}
	}
	if p.TabOffset != nil {
		v := clampLogged(logger, NameTabOffset, *p.TabOffset, TabOffsetRange)
		if v != cur.TabOffset {
			next.TabOffset = v
			record(NameTabOffset, cur.TabOffset, v)
		}
	}

	applyBool(p.EnableMousePrediction, cur.EnableMousePrediction, &next.EnableMousePrediction, NameEnableMousePrediction, record)
	applyBool(p.EnableScrollPrediction, cur.EnableScrollPrediction, &next.EnableScrollPrediction, NameEnableScrollPrediction, record)
	applyBool(p.EnableTabPrediction, cur.EnableTabPrediction, &next.EnableTabPrediction, NameEnableTabPrediction, record)
	applyBool(p.EnableManagerLogging, cur.EnableManagerLogging, &next.EnableManagerLogging, NameEnableManagerLogging, record)

	if p.DefaultHitSlop != nil {
		v := p.DefaultHitSlop.Clamp()
		if v != *p.DefaultHitSlop {
			logger.Warn("Hit slop clamped to allowed range.",
				zap.Any("requested", *p.DefaultHitSlop),
				zap.Float64("max", geometry.MaxHitSlop))
		}
		if v != cur.DefaultHitSlop {
			next.DefaultHitSlop = v
			record(NameDefaultHitSlop, cur.DefaultHitSlop, v)
		}
	}

	if p.TouchDeviceStrategy != nil {
		v := *p.TouchDeviceStrategy
		switch {
		case !v.Valid():
			logger.Warn("Ignoring unknown touch device strategy.", zap.String("value", string(v)))
		case v != cur.TouchDeviceStrategy:
			next.TouchDeviceStrategy = v
			record(NameTouchDeviceStrategy, cur.TouchDeviceStrategy, v)
		}
	}

	if p.MinimumConnectionType != nil {
		v := *p.MinimumConnectionType
		switch {
		case !v.Valid():
			logger.Warn("Ignoring unknown minimum connection type.", zap.String("value", string(v)))
		case v != cur.MinimumConnectionType:
			next.MinimumConnectionType = v
			record(NameMinimumConnectionType, cur.MinimumConnectionType, v)
		}
	}

	return next, changes
}

func clampLogged[T int | float64 | time.Duration](logger *zap.Logger, name string, v T, r Range[T]) T {
	c := r.Clamp(v)
	if c != v {
		logger.Warn("Setting clamped to allowed range.",
			zap.String("setting", name),
			zap.Any("requested", v),
			zap.Any("applied", c),
			zap.Any("min", r.Min),
			zap.Any("max", r.Max))
	}
	return c
}

func applyBool(p *bool, cur bool, dst *bool, name string, record func(string, any, any)) {
	if p == nil || *p == cur {
		return
	}
	*dst = *p
	record(name, cur, *p)
}

// HasChanged reports whether changes name the given setting.
func HasChanged(changes []schemas.SettingChange, name string) bool {
	for _, c := range changes {
		if c.Setting == name {
			return true
		}
	}
	return false
}

package settings

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 8, d.PositionHistorySize)
	assert.Equal(t, 120*time.Millisecond, d.TrajectoryPredictionTime)
	assert.Equal(t, 150.0, d.ScrollMargin)
	assert.Equal(t, 2, d.TabOffset)
	assert.True(t, d.EnableMousePrediction)
	assert.True(t, d.EnableScrollPrediction)
	assert.True(t, d.EnableTabPrediction)
	assert.Equal(t, TouchOnTouchStart, d.TouchDeviceStrategy)
	assert.Equal(t, dom.Connection3G, d.MinimumConnectionType)
	assert.False(t, d.EnableManagerLogging)
}

func TestApply_Clamping(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	next, changes := Apply(Defaults(), Partial{
		TrajectoryPredictionTime: Ptr(999999 * time.Millisecond),
		PositionHistorySize:      Ptr(-1),
		ScrollMargin:             Ptr(5000.0),
		TabOffset:                Ptr(-4),
	}, logger)

	assert.Equal(t, TrajectoryPredictionTimeRange.Max, next.TrajectoryPredictionTime)
	assert.Equal(t, PositionHistorySizeRange.Min, next.PositionHistorySize)
	assert.Equal(t, ScrollMarginRange.Max, next.ScrollMargin)
	assert.Equal(t, TabOffsetRange.Min, next.TabOffset)
	assert.Len(t, changes, 4)
	assert.Equal(t, 4, logs.FilterMessage("Setting clamped to allowed range.").Len())
}

func TestApply_Diff(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("NoChangeNoDiff", func(t *testing.T) {
		d := Defaults()
		next, changes := Apply(d, Partial{
			PositionHistorySize:   Ptr(d.PositionHistorySize),
			EnableMousePrediction: Ptr(true),
			DefaultHitSlop:        Ptr(geometry.HitSlop{}),
		}, logger)
		assert.Empty(t, changes)
		assert.Equal(t, d, next)
	})

	t.Run("ReportsEveryActualChange", func(t *testing.T) {
		slop := geometry.UniformHitSlop(12)
		_, changes := Apply(Defaults(), Partial{
			PositionHistorySize:   Ptr(10),
			EnableTabPrediction:   Ptr(false),
			EnableMousePrediction: Ptr(true), // unchanged
			DefaultHitSlop:        &slop,
			TouchDeviceStrategy:   Ptr(TouchViewport),
		}, logger)

		want := []schemas.SettingChange{
			{Setting: NamePositionHistorySize, OldValue: 8, NewValue: 10},
			{Setting: NameEnableTabPrediction, OldValue: true, NewValue: false},
			{Setting: NameDefaultHitSlop, OldValue: geometry.HitSlop{}, NewValue: slop},
			{Setting: NameTouchDeviceStrategy, OldValue: TouchOnTouchStart, NewValue: TouchViewport},
		}
		if diff := cmp.Diff(want, changes); diff != "" {
			t.Errorf("changes mismatch (-want +got):\n%s", diff)
		}
		assert.True(t, HasChanged(changes, NameDefaultHitSlop))
		assert.False(t, HasChanged(changes, NameScrollMargin))
	})

	t.Run("ClampedValueEqualToCurrentIsNoChange", func(t *testing.T) {
		cur := Defaults()
		cur.TabOffset = TabOffsetRange.Max
		_, changes := Apply(cur, Partial{TabOffset: Ptr(1000)}, logger)
		assert.Empty(t, changes)
	})
}

func TestApply_RejectsUnknownEnums(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	next, changes := Apply(Defaults(), Partial{
		TouchDeviceStrategy:   Ptr(TouchStrategy("swipe")),
		MinimumConnectionType: Ptr(dom.ConnectionType("5g")),
	}, zap.New(core))

	assert.Empty(t, changes)
	assert.Equal(t, TouchOnTouchStart, next.TouchDeviceStrategy)
	assert.Equal(t, dom.Connection3G, next.MinimumConnectionType)
	assert.Equal(t, 2, logs.Len())
}

func TestApply_HitSlopClamp(t *testing.T) {
	next, _ := Apply(Defaults(), Partial{
		DefaultHitSlop: Ptr(geometry.HitSlop{Top: -3, Left: 5000, Right: 1, Bottom: 2}),
	}, nil)
	assert.Equal(t, geometry.HitSlop{Top: 0, Left: geometry.MaxHitSlop, Right: 1, Bottom: 2}, next.DefaultHitSlop)
}

func TestNew(t *testing.T) {
	s := New(Partial{ScrollMargin: Ptr(1.0)}, nil)
	assert.Equal(t, ScrollMarginRange.Min, s.ScrollMargin)
	assert.Equal(t, Defaults().TabOffset, s.TabOffset)
}

package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/foresight/api/schemas"
)

// TestConstants pins the string values that appear in emitted events.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant any
		expected string
	}{
		{"KindMouse", schemas.KindMouse, "mouse"},
		{"KindTab", schemas.KindTab, "tab"},
		{"KindScroll", schemas.KindScroll, "scroll"},
		{"KindTouch", schemas.KindTouch, "touch"},
		{"KindViewport", schemas.KindViewport, "viewport"},

		{"ScrollUp", schemas.ScrollUp, "up"},
		{"ScrollDown", schemas.ScrollDown, "down"},
		{"ScrollLeft", schemas.ScrollLeft, "left"},
		{"ScrollRight", schemas.ScrollRight, "right"},
		{"ScrollNone", schemas.ScrollNone, "none"},

		{"StatusSuccess", schemas.StatusSuccess, "success"},
		{"StatusError", schemas.StatusError, "error"},

		{"ReasonAPICall", schemas.ReasonAPICall, "apiCall"},
		{"ReasonDisconnected", schemas.ReasonDisconnected, "disconnected"},
		{"ReasonShutdown", schemas.ReasonShutdown, "shutdown"},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, reflect.ValueOf(tt.constant).String())
		})
	}
}

func TestHitConstructors(t *testing.T) {
	assert.Equal(t, schemas.HitType{Kind: schemas.KindMouse, SubType: "hover"}, schemas.MouseHit(schemas.SubTypeHover))
	assert.Equal(t, schemas.HitType{Kind: schemas.KindTab, SubType: "reverse"}, schemas.TabHit(true))
	assert.Equal(t, schemas.HitType{Kind: schemas.KindTab, SubType: "forwards"}, schemas.TabHit(false))
	assert.Equal(t, schemas.HitType{Kind: schemas.KindScroll, SubType: "left"}, schemas.ScrollHit(schemas.ScrollLeft))
	assert.Equal(t, schemas.HitType{Kind: schemas.KindTouch}, schemas.TouchHit())
	assert.Equal(t, schemas.HitType{Kind: schemas.KindViewport}, schemas.ViewportHit())
}

func TestHitCountersRecord(t *testing.T) {
	var c schemas.HitCounters
	for _, hit := range []schemas.HitType{
		schemas.MouseHit(schemas.SubTypeHover),
		schemas.MouseHit(schemas.SubTypeTrajectory),
		schemas.MouseHit(schemas.SubTypeTrajectory),
		schemas.TabHit(false),
		schemas.TabHit(true),
		schemas.ScrollHit(schemas.ScrollUp),
		schemas.ScrollHit(schemas.ScrollDown),
		schemas.ScrollHit(schemas.ScrollLeft),
		schemas.ScrollHit(schemas.ScrollRight),
		schemas.TouchHit(),
		schemas.ViewportHit(),
	} {
		c.Record(hit)
	}

	assert.Equal(t, 11, c.Total)
	assert.Equal(t, 1, c.Mouse.Hover)
	assert.Equal(t, 2, c.Mouse.Trajectory)
	assert.Equal(t, 1, c.Tab.Forwards)
	assert.Equal(t, 1, c.Tab.Reverse)
	assert.Equal(t, 1, c.Scroll.Up)
	assert.Equal(t, 1, c.Scroll.Down)
	assert.Equal(t, 1, c.Scroll.Left)
	assert.Equal(t, 1, c.Scroll.Right)
	assert.Equal(t, 1, c.Touch)
	assert.Equal(t, 1, c.Viewport)
}

// TestStructJSONTags guards the field names consumers of the event stream
// depend on.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    any
		expectedTags map[string]string
	}{
		{
			name:      "ElementData",
			structRef: schemas.ElementData{},
			expectedTags: map[string]string{
				"ID":                     "id",
				"Element":                "-",
				"Name":                   "name",
				"Meta":                   "meta,omitempty",
				"Bounds":                 "bounds",
				"UsesDefaultHitSlop":     "usesDefaultHitSlop",
				"IsIntersectingViewport": "isIntersectingViewport",
				"RegisterCount":          "registerCount",
				"CallbackInfo":           "callbackInfo",
			},
		},
		{
			name:      "HitType",
			structRef: schemas.HitType{},
			expectedTags: map[string]string{
				"Kind":    "kind",
				"SubType": "subType,omitempty",
			},
		},
		{
			name:      "SettingChange",
			structRef: schemas.SettingChange{},
			expectedTags: map[string]string{
				"Setting":  "setting",
				"OldValue": "oldValue",
				"NewValue": "newValue",
			},
		},
		{
			name:      "TrajectorySnapshot",
			structRef: schemas.TrajectorySnapshot{},
			expectedTags: map[string]string{
				"History":   "history",
				"Current":   "current",
				"Predicted": "predicted",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)
			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				if jsonTag := field.Tag.Get("json"); jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}
			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}

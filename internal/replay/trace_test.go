package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

const sampleTrace = `{
  "name": "checkout",
  "viewport": {"top": 0, "left": 0, "right": 800, "bottom": 600},
  "connection": {"effectiveType": "4g", "saveData": false},
  "settings": {"trajectoryPredictionTimeMs": 80, "touchDeviceStrategy": "viewport"},
  "regions": [
    {"id": "buy", "rect": {"top": 100, "left": 300, "right": 400, "bottom": 200}, "hitSlop": {"top": 20, "left": 20, "right": 20, "bottom": 20}, "reactivateAfterMs": 5000},
    {"id": "help", "rect": {"top": 700, "left": 0, "right": 50, "bottom": 750}, "focusable": true, "register": false}
  ],
  "steps": [
    {"op": "move", "x": 10, "y": 150, "dtMs": 16},
    {"op": "scroll", "dy": 40},
    {"op": "key", "shift": true},
    {"op": "wait", "ms": 5000},
    {"op": "settings", "settings": {"enableMousePrediction": false}}
  ]
}`

func TestLoadTrace(t *testing.T) {
	tr, err := LoadTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)

	assert.Equal(t, "checkout", tr.Name)
	require.Len(t, tr.Regions, 2)
	assert.True(t, tr.Regions[0].Registered())
	assert.False(t, tr.Regions[1].Registered())
	d, ok := tr.Regions[0].ReactivateAfter()
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)
	_, ok = tr.Regions[1].ReactivateAfter()
	assert.False(t, ok)

	p := tr.Settings.Partial()
	require.NotNil(t, p.TrajectoryPredictionTime)
	assert.Equal(t, 80*time.Millisecond, *p.TrajectoryPredictionTime)
	assert.Equal(t, settings.TouchViewport, *p.TouchDeviceStrategy)

	require.Len(t, tr.Steps, 5)
	assert.True(t, tr.Steps[0].IsHostOp())
	assert.False(t, tr.Steps[4].IsHostOp())
}

func TestLoadTrace_Invalid(t *testing.T) {
	tests := map[string]string{
		"Malformed":   `{"regions": [`,
		"MissingID":   `{"regions": [{"rect": {}}]}`,
		"DuplicateID": `{"regions": [{"id": "a"}, {"id": "a"}]}`,
		"InvertedBox": `{"regions": [{"id": "a", "rect": {"top": 10, "bottom": 0}}]}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTrace(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	tr, err := LoadTrace(strings.NewReader(sampleTrace))
	require.NoError(t, err)
	h := NewHostFromTrace(tr, WithStart(time.Unix(0, 0)))

	var seen []dom.EventType
	for _, typ := range []dom.EventType{dom.EventPointerMove, dom.EventKeyDown, dom.EventFocusIn} {
		h.AddListener(context.Background(), typ, func(ev dom.Event) { seen = append(seen, ev.Type) })
	}

	for _, s := range tr.Steps {
		if !s.IsHostOp() {
			assert.ErrorIs(t, h.Apply(s), ErrUnknownOp)
			continue
		}
		require.NoError(t, h.Apply(s))
	}

	assert.Equal(t, []dom.EventType{dom.EventPointerMove, dom.EventKeyDown, dom.EventFocusIn}, seen)
	buy, ok := h.Node("buy")
	require.True(t, ok)
	assert.Equal(t, 60.0, buy.BoundingBox().Top)
	assert.Equal(t, time.Unix(0, 0).Add(5016*time.Millisecond), h.Clock().Now())

	err = h.Apply(Step{Op: OpTouch, ID: "missing"})
	assert.ErrorIs(t, err, ErrUnknownRegion)
	err = h.Apply(Step{Op: OpResize, ID: "buy"})
	assert.Error(t, err)
	require.NoError(t, h.Apply(Step{Op: OpResize, ID: "buy", Rect: &geometry.Rect{Right: 1, Bottom: 1}}))
	assert.Equal(t, geometry.Rect{Right: 1, Bottom: 1}, buy.BoundingBox())
}

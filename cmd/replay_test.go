package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/foresight/internal/config"
	"github.com/xkilldash9x/foresight/internal/replay"
)

func TestReplayCmd(t *testing.T) {
	path := writeConfig(t, "")
	out, _, err := executeCommand(t, "--config", path, "replay", "testdata/checkout.json")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.NotEmpty(t, lines)

	session := lines[0]["session"]
	for _, l := range lines {
		assert.Equal(t, session, l["session"], "every line carries the session id")
	}

	registered := ofKind(lines, "elementRegistered")
	require.Len(t, registered, 2)
	assert.EqualValues(t, -1, registered[0]["step"])

	invoked := ofKind(lines, "callbackInvoked")
	require.Len(t, invoked, 2)
	first := invoked[0]["event"].(map[string]any)
	assert.EqualValues(t, 0, invoked[0]["step"])
	assert.Equal(t, "CTA", first["element"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"kind": "mouse", "subType": "hover"}, first["hitType"])
	second := invoked[1]["event"].(map[string]any)
	assert.EqualValues(t, 1, invoked[1]["step"])
	assert.Equal(t, "Nav", second["element"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{"kind": "tab", "subType": "forwards"}, second["hitType"])

	completed := ofKind(lines, "callbackCompleted")
	require.Len(t, completed, 2)
	assert.Equal(t, "success", completed[0]["event"].(map[string]any)["status"])
	failed := completed[1]["event"].(map[string]any)
	assert.Equal(t, "error", failed["status"])
	assert.Equal(t, "boom", failed["errorMessage"])

	unregistered := ofKind(lines, "elementUnregistered")
	require.Len(t, unregistered, 1)
	assert.Equal(t, "apiCall", unregistered[0]["event"].(map[string]any)["reason"])

	summary := lines[len(lines)-1]
	require.Equal(t, "summary", summary["kind"])
	assert.Equal(t, "checkout", summary["trace"])
	counters := summary["hitCounters"].(map[string]any)
	assert.EqualValues(t, 2, counters["total"])
	assert.EqualValues(t, 1, counters["mouse"].(map[string]any)["hover"])
	assert.EqualValues(t, 1, counters["tab"].(map[string]any)["forwards"])
	assert.Len(t, summary["elements"], 1)
}

func TestReplayCmd_EventFilter(t *testing.T) {
	path := writeConfig(t, "")
	out, _, err := executeCommand(t, "--config", path, "replay", "--events", "callbackInvoked", "--summary=false", "testdata/checkout.json")
	require.NoError(t, err)

	lines := jsonLines(t, out)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, "callbackInvoked", l["kind"])
	}
}

func TestReplayCmd_Errors(t *testing.T) {
	path := writeConfig(t, "")

	t.Run("MissingArgument", func(t *testing.T) {
		_, _, err := executeCommand(t, "--config", path, "replay")
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, _, err := executeCommand(t, "--config", path, "replay", "testdata/nope.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open trace")
	})

	t.Run("UnknownEventKind", func(t *testing.T) {
		_, _, err := executeCommand(t, "--config", path, "replay", "--events", "clicked", "testdata/checkout.json")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown event kind "clicked"`)
	})
}

func TestRunReplay_StepErrors(t *testing.T) {
	cfg := config.NewDefaultConfig()
	tests := map[string]string{
		"UnknownOp":       `{"regions": [], "steps": [{"op": "teleport"}]}`,
		"UnknownRegion":   `{"regions": [], "steps": [{"op": "reactivate", "id": "ghost"}]}`,
		"SettingsMissing": `{"regions": [], "steps": [{"op": "settings"}]}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			trace, err := replay.LoadTrace(strings.NewReader(raw))
			require.NoError(t, err)
			var out bytes.Buffer
			_, err = runReplay(context.Background(), cfg, trace, &out, replayOptions{summary: true}, zaptest.NewLogger(t))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "step 0")
		})
	}
}

func TestRunReplay_ReactivateAndRegisterOps(t *testing.T) {
	raw := `{
	  "settings": {"enableMousePrediction": false},
	  "regions": [{"id": "a", "rect": {"top": 0, "left": 0, "right": 50, "bottom": 50}, "register": false}],
	  "steps": [
	    {"op": "register", "id": "a"},
	    {"op": "move", "x": 10, "y": 10, "dtMs": 16},
	    {"op": "reactivate", "id": "a"},
	    {"op": "move", "x": 12, "y": 12, "dtMs": 16}
	  ]
	}`
	trace, err := replay.LoadTrace(strings.NewReader(raw))
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := runReplay(context.Background(), config.NewDefaultConfig(), trace, &out, replayOptions{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 2, summary.HitCounters.Mouse.Hover, "reactivation re-arms the hovered element")
	require.Len(t, summary.Elements, 1)
	assert.Equal(t, 2, summary.Elements[0].CallbackInfo.FiredCount)
	assert.NotContains(t, out.String(), `"kind":"summary"`, "summary disabled")
}

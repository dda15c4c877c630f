// -- cmd/replay.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/config"
	"github.com/xkilldash9x/foresight/internal/engine"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/observability"
	"github.com/xkilldash9x/foresight/internal/registry"
	"github.com/xkilldash9x/foresight/internal/replay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errNoSettings is returned for a settings step without a settings body.
var errNoSettings = errors.New("settings step has no settings")

type replayOptions struct {
	kinds   []string
	summary bool
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}
	replayCmd := &cobra.Command{
		Use:   "replay <trace.json>",
		Short: "Run a recorded trace through the engine and print its events as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open trace: %w", err)
			}
			defer f.Close()

			trace, err := replay.LoadTrace(f)
			if err != nil {
				return err
			}
			_, err = runReplay(cmd.Context(), cfg, trace, cmd.OutOrStdout(), opts, observability.GetLogger())
			return err
		},
	}
	replayCmd.Flags().StringSliceVar(&opts.kinds, "events", nil, "event kinds to print (default all)")
	replayCmd.Flags().BoolVar(&opts.summary, "summary", true, "print a summary line after the last step")
	return replayCmd
}

// replaySummary is the final line of a replay.
type replaySummary struct {
	Session     string                `json:"session"`
	Kind        string                `json:"kind"`
	Trace       string                `json:"trace,omitempty"`
	Steps       int                   `json:"steps"`
	HitCounters schemas.HitCounters   `json:"hitCounters"`
	Elements    []schemas.ElementData `json:"elements"`
}

// eventLine is one printed engine event.
type eventLine struct {
	Session string       `json:"session"`
	Step    int          `json:"step"`
	AtMs    float64      `json:"atMs"`
	Kind    events.Kind  `json:"kind"`
	Event   events.Event `json:"event"`
}

// eventWriter serialises events from the driving goroutine and from callback
// completions. The first write error sticks.
type eventWriter struct {
	mu      sync.Mutex
	enc     *jsoniter.Encoder
	session string
	start   time.Time
	step    int
	err     error
}

func (w *eventWriter) setStep(i int) {
	w.mu.Lock()
	w.step = i
	w.mu.Unlock()
}

func (w *eventWriter) write(ev events.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	line := eventLine{
		Session: w.session,
		Step:    w.step,
		AtMs:    float64(ev.At().Sub(w.start)) / float64(time.Millisecond),
		Kind:    ev.Kind(),
		Event:   ev,
	}
	w.err = w.enc.Encode(line)
}

func (w *eventWriter) encode(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.err = w.enc.Encode(v)
	return w.err
}

func (w *eventWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// runReplay plays trace against a fresh manager and writes its events to
// out. Steps run strictly in order: each waits for the callbacks it started
// before the next begins, so the output is deterministic.
func runReplay(ctx context.Context, cfg config.Interface, trace *replay.Trace, out io.Writer, opts replayOptions, logger *zap.Logger) (*replaySummary, error) {
	session := uuid.NewString()
	logger = logger.With(zap.String("component", "replay"), zap.String("session", session))

	host := replay.NewHostFromTrace(trace)
	m, err := engine.New(host,
		engine.WithContext(ctx),
		engine.WithLogger(logger),
		engine.WithClock(host.Clock()),
		engine.WithFrames(host.Frames()),
		engine.WithSettings(cfg.Foresight().Partial()),
		engine.WithCallbackTimeout(cfg.Engine().CallbackTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	defer m.Close()

	if trace.Settings != nil {
		m.AlterSettings(trace.Settings.Partial())
	}

	w := &eventWriter{enc: json.NewEncoder(out), session: session, start: host.Clock().Now(), step: -1}
	kinds, err := selectKinds(opts.kinds)
	if err != nil {
		return nil, err
	}
	var unsubs []func()
	for _, k := range kinds {
		unsubs = append(unsubs, m.On(k, w.write))
	}
	unsubscribe := func() {
		for _, u := range unsubs {
			u()
		}
		unsubs = nil
	}
	defer unsubscribe()

	regions := make(map[string]replay.Region, len(trace.Regions))
	for _, reg := range trace.Regions {
		regions[reg.ID] = reg
		if !reg.Registered() {
			continue
		}
		if err := registerRegion(m, host, reg, 0); err != nil {
			return nil, err
		}
	}
	host.Settle()
	m.Drain()

	logger.Info("Replaying trace.",
		zap.String("trace", trace.Name),
		zap.Int("regions", len(trace.Regions)),
		zap.Int("steps", len(trace.Steps)))

	for i, step := range trace.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w.setStep(i)
		if err := applyStep(m, host, regions, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		m.Drain()
	}

	snap := m.Snapshot()
	summary := &replaySummary{
		Session:     session,
		Kind:        "summary",
		Trace:       trace.Name,
		Steps:       len(trace.Steps),
		HitCounters: snap.HitCounters,
		Elements:    snap.Elements,
	}
	unsubscribe()
	if err := m.Close(); err != nil {
		return nil, err
	}
	if opts.summary {
		if err := w.encode(summary); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}
	if err := w.failed(); err != nil {
		return nil, fmt.Errorf("failed to write events: %w", err)
	}
	return summary, nil
}

// selectKinds resolves --events, defaulting to every kind.
func selectKinds(names []string) ([]events.Kind, error) {
	if len(names) == 0 {
		return events.AllKinds, nil
	}
	known := make(map[events.Kind]bool, len(events.AllKinds))
	for _, k := range events.AllKinds {
		known[k] = true
	}
	kinds := make([]events.Kind, 0, len(names))
	for _, n := range names {
		k := events.Kind(n)
		if !known[k] {
			return nil, fmt.Errorf("unknown event kind %q", n)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func applyStep(m *engine.Manager, host *replay.Host, regions map[string]replay.Region, step replay.Step) error {
	if step.IsHostOp() {
		return host.Apply(step)
	}
	if step.DtMs > 0 {
		host.Advance(time.Duration(step.DtMs * float64(time.Millisecond)))
	}

	switch step.Op {
	case replay.OpSettings:
		if step.Settings == nil {
			return errNoSettings
		}
		m.AlterSettings(step.Settings.Partial())
	case replay.OpRegister, replay.OpUnregister, replay.OpReactivate:
		node, ok := host.Node(step.ID)
		if !ok {
			return fmt.Errorf("%w: %q", replay.ErrUnknownRegion, step.ID)
		}
		switch step.Op {
		case replay.OpRegister:
			if err := registerRegion(m, host, regions[step.ID], 0); err != nil {
				return err
			}
		case replay.OpUnregister:
			m.Unregister(node, schemas.ReasonAPICall)
		case replay.OpReactivate:
			m.Reactivate(node)
		}
	default:
		return fmt.Errorf("%w: %q", replay.ErrUnknownOp, step.Op)
	}
	host.Settle()
	return nil
}

// registerRegion tracks reg's node with a callback that takes latency to
// complete and fails with reg.Fail when set.
func registerRegion(m *engine.Manager, host *replay.Host, reg replay.Region, latency time.Duration) error {
	node, ok := host.Node(reg.ID)
	if !ok {
		return fmt.Errorf("%w: %q", replay.ErrUnknownRegion, reg.ID)
	}
	opts := engine.RegisterOptions{
		Element:  node,
		Name:     reg.Name,
		Meta:     reg.Meta,
		HitSlop:  reg.HitSlop,
		Callback: regionCallback(reg.Fail, latency),
	}
	if after, ok := reg.ReactivateAfter(); ok {
		opts.ReactivateAfter = after
	}
	if _, err := m.Register(opts); err != nil {
		return fmt.Errorf("failed to register %q: %w", reg.ID, err)
	}
	return nil
}

func regionCallback(fail string, latency time.Duration) registry.Callback {
	return func(ctx context.Context) error {
		if latency > 0 {
			t := time.NewTimer(latency)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail != "" {
			return errors.New(fail)
		}
		return nil
	}
}

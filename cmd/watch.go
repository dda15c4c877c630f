// -- cmd/watch.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/foresight/internal/config"
	"github.com/xkilldash9x/foresight/internal/engine"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/observability"
	"github.com/xkilldash9x/foresight/internal/replay"
	"github.com/xkilldash9x/foresight/internal/terminal"
)

// newScreen is swapped out in tests.
var newScreen = tcell.NewScreen

func newWatchCmd() *cobra.Command {
	var (
		layout  string
		latency time.Duration
	)
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Drive the engine interactively from the terminal's mouse and keyboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			trace := defaultLayout()
			if layout != "" {
				f, err := os.Open(layout)
				if err != nil {
					return fmt.Errorf("failed to open layout: %w", err)
				}
				trace, err = replay.LoadTrace(f)
				f.Close()
				if err != nil {
					return err
				}
			}

			screen, err := newScreen()
			if err != nil {
				return fmt.Errorf("failed to create screen: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to initialize screen: %w", err)
			}
			defer screen.Fini()

			return runWatch(cmd.Context(), cfg, screen, trace, latency, observability.GetLogger())
		},
	}
	watchCmd.Flags().StringVar(&layout, "layout", "", "trace file whose regions and settings lay out the screen")
	watchCmd.Flags().DurationVar(&latency, "latency", 400*time.Millisecond, "simulated prefetch duration per callback")
	return watchCmd
}

// runWatch runs the terminal UI and a shutdown watcher side by side. The UI
// ending, by quit key or error, cancels the watcher, which closes the
// manager and waits for in-flight callbacks.
func runWatch(ctx context.Context, cfg config.Interface, screen tcell.Screen, trace *replay.Trace, latency time.Duration, logger *zap.Logger) error {
	host := replay.NewHostFromTrace(trace, replay.WithStart(time.Now()))
	m, err := engine.New(host,
		engine.WithContext(ctx),
		engine.WithLogger(logger),
		engine.WithClock(host.Clock()),
		engine.WithFrames(host.Frames()),
		engine.WithSettings(cfg.Foresight().Partial()),
		engine.WithCallbackTimeout(cfg.Engine().CallbackTimeout))
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	if trace.Settings != nil {
		m.AlterSettings(trace.Settings.Partial())
	}

	ui := terminal.New(screen, host, logger, terminal.WithTick(cfg.Engine().FrameInterval))
	for _, reg := range trace.Regions {
		node, _ := host.Node(reg.ID)
		label := reg.Name
		if label == "" {
			label = reg.ID
		}
		ui.Add(node, label)
	}
	unwatch := ui.Watch(m.Events())
	defer unwatch()

	for _, reg := range trace.Regions {
		if !reg.Registered() {
			continue
		}
		if err := registerRegion(m, host, reg, latency); err != nil {
			_ = m.Close()
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		err := ui.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("terminal host failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return m.Close()
	})
	return g.Wait()
}

// defaultLayout is a two-row strip of focusable buttons.
func defaultLayout() *replay.Trace {
	names := []string{"Home", "Docs", "Pricing", "Blog", "Careers", "Contact"}
	t := &replay.Trace{Name: "demo"}
	for i, name := range names {
		col, row := float64(i%3), float64(i/3)
		left, top := 4+col*22, 2+row*8
		reactivate := 3000.0
		t.Regions = append(t.Regions, replay.Region{
			ID:                fmt.Sprintf("btn-%d", i+1),
			Name:              name,
			Rect:              geometry.Rect{Top: top, Left: left, Right: left + 18, Bottom: top + 5},
			Focusable:         true,
			ReactivateAfterMs: &reactivate,
		})
	}
	return t
}

// Package terminal hosts the engine in a tcell screen. Regions are drawn as
// boxes, one cell per unit; real mouse motion, wheel scrolling and Tab
// navigation drive a replay.Host whose manual clock is pumped from the wall
// clock, and callback activity is painted back onto the boxes.
package terminal

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/replay"
)

// DefaultTick is how often the UI pumps time and redraws without input.
const DefaultTick = 16 * time.Millisecond

// WheelStep is how far one wheel notch scrolls the page, in cells.
const WheelStep = 2

type regionState int

const (
	stateIdle regionState = iota
	stateRunning
	stateDone
	stateFailed
	stateGone
)

var stateStyles = map[regionState]tcell.Style{
	stateIdle:    tcell.StyleDefault.Foreground(tcell.ColorWhite),
	stateRunning: tcell.StyleDefault.Foreground(tcell.ColorYellow),
	stateDone:    tcell.StyleDefault.Foreground(tcell.ColorGreen),
	stateFailed:  tcell.StyleDefault.Foreground(tcell.ColorRed),
	stateGone:    tcell.StyleDefault.Foreground(tcell.ColorGray),
}

type region struct {
	node  *replay.Node
	label string
	state regionState
	hit   schemas.HitType
}

// UI owns the event loop. Host input is only ever driven from Run's
// goroutine; engine events may arrive from any goroutine.
type UI struct {
	screen tcell.Screen
	host   *replay.Host
	logger *zap.Logger
	tick   time.Duration
	now    func() time.Time
	last   time.Time

	mu        sync.Mutex
	regions   []*region
	byElement map[dom.Element]*region
	predicted *geometry.Point
	device    dom.PointerType
	hits      int
	lastHit   string
}

// Option configures a UI.
type Option func(*UI)

func WithTick(d time.Duration) Option { return func(u *UI) { u.tick = d } }

// WithNow replaces the wall clock the manual clock is pumped from.
func WithNow(now func() time.Time) Option { return func(u *UI) { u.now = now } }

// New wraps an initialised screen. The host's clock should start at the
// current wall time.
func New(screen tcell.Screen, host *replay.Host, logger *zap.Logger, opts ...Option) *UI {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &UI{
		screen:    screen,
		host:      host,
		logger:    logger.With(zap.String("component", "terminal_host")),
		tick:      DefaultTick,
		now:       time.Now,
		byElement: make(map[dom.Element]*region),
		device:    host.PrimaryPointer(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.last = host.Clock().Now()
	return u
}

// Add draws n with label. Adding does not register it with any manager.
func (u *UI) Add(n *replay.Node, label string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	r := &region{node: n, label: label}
	u.regions = append(u.regions, r)
	u.byElement[n] = r
}

// Watch paints em's callback activity onto the regions until the returned
// function is called.
func (u *UI) Watch(em *events.Emitter) (unsubscribe func()) {
	subs := []func(){
		events.Subscribe(em, func(ev events.CallbackInvoked) {
			u.update(ev.Element.Element, func(r *region) {
				r.state, r.hit = stateRunning, ev.HitType
				u.hits++
				u.lastHit = hitLabel(ev.HitType)
			})
		}),
		events.Subscribe(em, func(ev events.CallbackCompleted) {
			u.update(ev.Element.Element, func(r *region) {
				if ev.Status == schemas.StatusError {
					r.state = stateFailed
					return
				}
				r.state = stateDone
			})
		}),
		events.Subscribe(em, func(ev events.ElementReactivated) {
			u.update(ev.Element.Element, func(r *region) { r.state = stateIdle })
		}),
		events.Subscribe(em, func(ev events.ElementRegistered) {
			u.update(ev.Element.Element, func(r *region) { r.state = stateIdle })
		}),
		events.Subscribe(em, func(ev events.ElementUnregistered) {
			u.update(ev.Element.Element, func(r *region) { r.state = stateGone })
		}),
		events.Subscribe(em, func(ev events.MouseTrajectoryUpdate) {
			u.mu.Lock()
			defer u.mu.Unlock()
			if !ev.PredictionEnabled {
				u.predicted = nil
				return
			}
			p := ev.Trajectory.Predicted
			u.predicted = &p
		}),
		events.Subscribe(em, func(ev events.ScrollTrajectoryUpdate) {
			u.mu.Lock()
			defer u.mu.Unlock()
			p := ev.Predicted
			u.predicted = &p
		}),
		events.Subscribe(em, func(ev events.DeviceStrategyChanged) {
			u.mu.Lock()
			defer u.mu.Unlock()
			u.device = ev.New
		}),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}

func (u *UI) update(el dom.Element, fn func(*region)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if r, ok := u.byElement[el]; ok {
		fn(r)
	}
}

// Run processes input until ctx ends or the user quits with q, Esc or
// Ctrl-C. Quitting returns nil; cancellation returns ctx.Err().
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.screen.EnableMouse()
	u.resize()

	input := make(chan tcell.Event, 16)
	go u.poll(ctx, input)

	ticker := time.NewTicker(u.tick)
	defer ticker.Stop()

	u.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-input:
			if quit := u.handle(ev); quit {
				u.logger.Debug("Terminal host quit by user.")
				return nil
			}
			u.draw()
		case <-ticker.C:
			u.pump()
			u.host.Settle()
			u.draw()
		}
	}
}

// poll forwards screen events until the screen is finalised or ctx ends.
func (u *UI) poll(ctx context.Context, out chan<- tcell.Event) {
	for {
		ev := u.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// pump advances the host clock to the wall clock, firing due timers.
func (u *UI) pump() {
	now := u.now()
	if d := now.Sub(u.last); d > 0 {
		u.host.Advance(d)
		u.last = now
	}
}

func (u *UI) handle(ev tcell.Event) (quit bool) {
	u.pump()
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyTab:
			u.host.PressKey(dom.KeyTab, false)
		case tcell.KeyBacktab:
			u.host.PressKey(dom.KeyTab, true)
		case tcell.KeyRune:
			if ev.Rune() == 'q' {
				return true
			}
			u.host.PressKey(string(ev.Rune()), false)
		default:
			u.host.PressKey(ev.Name(), false)
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		p := geometry.Point{X: float64(x), Y: float64(y)}
		buttons := ev.Buttons()
		switch {
		case buttons&tcell.WheelUp != 0:
			u.host.Scroll(0, -WheelStep)
		case buttons&tcell.WheelDown != 0:
			u.host.Scroll(0, WheelStep)
		case buttons&tcell.WheelLeft != 0:
			u.host.Scroll(-WheelStep, 0)
		case buttons&tcell.WheelRight != 0:
			u.host.Scroll(WheelStep, 0)
		case buttons&tcell.Button1 != 0:
			u.host.PointerDown(p, dom.PointerMouse)
		default:
			u.host.MovePointer(p, dom.PointerMouse)
		}
	case *tcell.EventResize:
		u.screen.Sync()
		u.resize()
	}
	u.host.Settle()
	return false
}

// resize makes the viewport everything above the status line.
func (u *UI) resize() {
	w, h := u.screen.Size()
	u.host.SetViewport(geometry.Rect{Top: 0, Left: 0, Right: float64(w), Bottom: float64(max(h-1, 0))})
}

// -- Drawing --

func (u *UI) draw() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.screen.Clear()
	focused := u.host.Focused()
	for _, r := range u.regions {
		style := stateStyles[r.state]
		if focused == r.node {
			style = style.Bold(true)
		}
		u.drawRegion(r, style)
	}
	if u.predicted != nil {
		x, y := cell(u.predicted.X), cell(u.predicted.Y)
		u.screen.SetContent(x, y, '+', nil, tcell.StyleDefault.Foreground(tcell.ColorFuchsia))
	}
	u.drawStatus()
	u.screen.Show()
}

func (u *UI) drawRegion(r *region, style tcell.Style) {
	box := r.node.BoundingBox()
	x0, y0 := cell(box.Left), cell(box.Top)
	x1, y1 := cell(box.Right)-1, cell(box.Bottom)-1
	if x1 <= x0 || y1 <= y0 {
		return
	}
	for x := x0 + 1; x < x1; x++ {
		u.screen.SetContent(x, y0, tcell.RuneHLine, nil, style)
		u.screen.SetContent(x, y1, tcell.RuneHLine, nil, style)
	}
	for y := y0 + 1; y < y1; y++ {
		u.screen.SetContent(x0, y, tcell.RuneVLine, nil, style)
		u.screen.SetContent(x1, y, tcell.RuneVLine, nil, style)
	}
	u.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, style)
	u.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, style)
	u.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, style)
	u.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, style)

	label := r.label
	if r.hit.Kind != "" {
		label = fmt.Sprintf("%s [%s]", label, hitLabel(r.hit))
	}
	u.text(x0+1, y0+1, x1, label, style)
}

func (u *UI) drawStatus() {
	w, h := u.screen.Size()
	if h == 0 {
		return
	}
	last := u.lastHit
	if last == "" {
		last = "-"
	}
	status := fmt.Sprintf(" hits %d  last %s  device %s  | tab focus  wheel scroll  q quit", u.hits, last, u.device)
	u.text(0, h-1, w, status, tcell.StyleDefault.Reverse(true))
}

// text writes s from (x, y), clipped before limit.
func (u *UI) text(x, y, limit int, s string, style tcell.Style) {
	for _, ch := range s {
		if x >= limit {
			return
		}
		u.screen.SetContent(x, y, ch, nil, style)
		x++
	}
}

func cell(v float64) int { return int(math.Round(v)) }

func hitLabel(h schemas.HitType) string {
	if h.SubType == "" {
		return string(h.Kind)
	}
	return string(h.Kind) + "/" + h.SubType
}

package replay

import (
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/geometry"
	"github.com/xkilldash9x/foresight/internal/settings"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnknownOp     = errors.New("replay: unknown step op")
	ErrUnknownRegion = errors.New("replay: unknown region")
)

// Op names a trace step.
type Op string

// Host ops drive the document.
const (
	OpMove   Op = "move"
	OpDown   Op = "down"
	OpScroll Op = "scroll"
	OpKey    Op = "key"
	OpFocus  Op = "focus"
	OpTouch  Op = "touch"
	OpRemove Op = "remove"
	OpResize Op = "resize"
	OpWait   Op = "wait"
)

// Engine ops act on registrations and settings.
const (
	OpRegister   Op = "register"
	OpUnregister Op = "unregister"
	OpReactivate Op = "reactivate"
	OpSettings   Op = "settings"
)

// Trace is a recorded or hand-written session.
type Trace struct {
	Name           string              `json:"name"`
	Viewport       *geometry.Rect      `json:"viewport,omitempty"`
	Connection     *dom.ConnectionInfo `json:"connection,omitempty"`
	PrimaryPointer dom.PointerType     `json:"primaryPointer,omitempty"`
	Settings       *SettingsSpec       `json:"settings,omitempty"`
	Regions        []Region            `json:"regions"`
	Steps          []Step              `json:"steps"`
}

// Region is a node in the scripted document.
type Region struct {
	ID        string            `json:"id"`
	Name      string            `json:"name,omitempty"`
	Rect      geometry.Rect     `json:"rect"`
	Focusable bool              `json:"focusable,omitempty"`
	HitSlop   *geometry.HitSlop `json:"hitSlop,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	// Register defaults to true; false adds the node without tracking it.
	Register *bool `json:"register,omitempty"`
	// ReactivateAfterMs omitted means never.
	ReactivateAfterMs *float64 `json:"reactivateAfterMs,omitempty"`
	// Fail makes the region's callback return this error message.
	Fail string `json:"fail,omitempty"`
}

// Registered reports whether the region is tracked at load.
func (r Region) Registered() bool { return r.Register == nil || *r.Register }

// ReactivateAfter converts ReactivateAfterMs; ok is false when unset.
func (r Region) ReactivateAfter() (time.Duration, bool) {
	if r.ReactivateAfterMs == nil {
		return 0, false
	}
	return msToDuration(*r.ReactivateAfterMs), true
}

// Step is one trace action. Only the fields relevant to Op are read.
type Step struct {
	Op Op `json:"op"`
	// DtMs advances the clock before the step runs.
	DtMs     float64         `json:"dtMs,omitempty"`
	X        float64         `json:"x,omitempty"`
	Y        float64         `json:"y,omitempty"`
	Pointer  dom.PointerType `json:"pointer,omitempty"`
	DX       float64         `json:"dx,omitempty"`
	DY       float64         `json:"dy,omitempty"`
	Key      string          `json:"key,omitempty"`
	Shift    bool            `json:"shift,omitempty"`
	ID       string          `json:"id,omitempty"`
	Rect     *geometry.Rect  `json:"rect,omitempty"`
	Ms       float64         `json:"ms,omitempty"`
	Settings *SettingsSpec   `json:"settings,omitempty"`
}

// IsHostOp reports whether Apply handles the step.
func (s Step) IsHostOp() bool {
	switch s.Op {
	case OpMove, OpDown, OpScroll, OpKey, OpFocus, OpTouch, OpRemove, OpResize, OpWait:
		return true
	}
	return false
}

// SettingsSpec is the trace form of settings.Partial, with durations in
// milliseconds.
type SettingsSpec struct {
	PositionHistorySize        *int                    `json:"positionHistorySize,omitempty"`
	TrajectoryPredictionTimeMs *float64                `json:"trajectoryPredictionTimeMs,omitempty"`
	ScrollMargin               *float64                `json:"scrollMargin,omitempty"`
	TabOffset                  *int                    `json:"tabOffset,omitempty"`
	EnableMousePrediction      *bool                   `json:"enableMousePrediction,omitempty"`
	EnableScrollPrediction     *bool                   `json:"enableScrollPrediction,omitempty"`
	EnableTabPrediction        *bool                   `json:"enableTabPrediction,omitempty"`
	DefaultHitSlop             *geometry.HitSlop       `json:"defaultHitSlop,omitempty"`
	TouchDeviceStrategy        *settings.TouchStrategy `json:"touchDeviceStrategy,omitempty"`
	MinimumConnectionType      *dom.ConnectionType     `json:"minimumConnectionType,omitempty"`
	EnableManagerLogging       *bool                   `json:"enableManagerLogging,omitempty"`
}

// Partial converts the trace settings block for settings.Apply.
func (s SettingsSpec) Partial() settings.Partial {
	p := settings.Partial{
		PositionHistorySize:    s.PositionHistorySize,
		ScrollMargin:           s.ScrollMargin,
		TabOffset:              s.TabOffset,
		EnableMousePrediction:  s.EnableMousePrediction,
		EnableScrollPrediction: s.EnableScrollPrediction,
		EnableTabPrediction:    s.EnableTabPrediction,
		DefaultHitSlop:         s.DefaultHitSlop,
		TouchDeviceStrategy:    s.TouchDeviceStrategy,
		MinimumConnectionType:  s.MinimumConnectionType,
		EnableManagerLogging:   s.EnableManagerLogging,
	}
	if s.TrajectoryPredictionTimeMs != nil {
		p.TrajectoryPredictionTime = settings.Ptr(msToDuration(*s.TrajectoryPredictionTimeMs))
	}
	return p
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// LoadTrace decodes a JSON trace.
func LoadTrace(r io.Reader) (*Trace, error) {
	var t Trace
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode trace: %w", err)
	}
	seen := make(map[string]bool, len(t.Regions))
	for i, reg := range t.Regions {
		if reg.ID == "" {
			return nil, fmt.Errorf("region %d has no id", i)
		}
		if seen[reg.ID] {
			return nil, fmt.Errorf("duplicate region id %q", reg.ID)
		}
		seen[reg.ID] = true
		if err := reg.Rect.Validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", reg.ID, err)
		}
	}
	return &t, nil
}

// NewHostFromTrace builds a host holding the trace's regions.
func NewHostFromTrace(t *Trace, opts ...Option) *Host {
	var base []Option
	if t.Viewport != nil {
		base = append(base, WithViewport(*t.Viewport))
	}
	if t.Connection != nil {
		base = append(base, WithConnection(*t.Connection))
	}
	if t.PrimaryPointer != "" {
		base = append(base, WithPrimaryPointer(t.PrimaryPointer))
	}
	h := NewHost(append(base, opts...)...)
	nodes := make([]*Node, 0, len(t.Regions))
	for _, reg := range t.Regions {
		nodes = append(nodes, NewNode(reg.ID, reg.Rect, reg.Focusable))
	}
	if len(nodes) > 0 {
		h.Append(nodes...)
	}
	return h
}

// Apply runs a host step: it advances the clock by DtMs, performs the
// action and settles. Engine ops return ErrUnknownOp.
func (h *Host) Apply(s Step) error {
	if !s.IsHostOp() {
		return fmt.Errorf("%w: %q", ErrUnknownOp, s.Op)
	}
	if s.DtMs > 0 {
		h.Advance(msToDuration(s.DtMs))
	}

	pointer := s.Pointer
	if pointer == "" {
		pointer = dom.PointerMouse
	}
	switch s.Op {
	case OpMove:
		h.MovePointer(geometry.Point{X: s.X, Y: s.Y}, pointer)
	case OpDown:
		h.PointerDown(geometry.Point{X: s.X, Y: s.Y}, pointer)
	case OpScroll:
		h.Scroll(s.DX, s.DY)
	case OpKey:
		key := s.Key
		if key == "" {
			key = dom.KeyTab
		}
		h.PressKey(key, s.Shift)
	case OpWait:
		h.Advance(msToDuration(s.Ms))
	case OpFocus, OpTouch, OpRemove, OpResize:
		n, ok := h.Node(s.ID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRegion, s.ID)
		}
		switch s.Op {
		case OpFocus:
			h.Focus(n)
		case OpTouch:
			h.Touch(n)
		case OpRemove:
			h.Remove(n)
		case OpResize:
			if s.Rect == nil {
				return fmt.Errorf("resize of %q has no rect", s.ID)
			}
			h.SetRect(n, *s.Rect)
		}
	}
	h.Settle()
	return nil
}

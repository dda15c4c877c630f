// internal/geometry/geometry.go
package geometry

import (
	"errors"
	"fmt"
)

// ErrMalformedRect reports a rectangle whose edges are inverted.
var ErrMalformedRect = errors.New("geometry: malformed rect")

// MaxHitSlop is the largest padding accepted on any side of a hit slop.
const MaxHitSlop = 2000.0

// Point is a position in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + o.
func (p Point) Add(o Point) Point { return Point{X: p.X + o.X, Y: p.Y + o.Y} }

// Sub returns p - o.
func (p Point) Sub(o Point) Point { return Point{X: p.X - o.X, Y: p.Y - o.Y} }

// Mul scales both components by s.
func (p Point) Mul(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }

// Rect is an axis-aligned box. Zero-area rects are valid.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// RectFromBox builds a Rect from an origin and a size.
func RectFromBox(x, y, width, height float64) Rect {
	return Rect{Top: y, Left: x, Right: x + width, Bottom: y + height}
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Validate reports ErrMalformedRect when Left > Right or Top > Bottom.
func (r Rect) Validate() error {
	if r.Left > r.Right || r.Top > r.Bottom {
		return fmt.Errorf("%w: %+v", ErrMalformedRect, r)
	}
	return nil
}

// HitSlop is per-side padding added around an element's bounds.
type HitSlop struct {
	Top    float64 `json:"top" mapstructure:"top" yaml:"top"`
	Left   float64 `json:"left" mapstructure:"left" yaml:"left"`
	Right  float64 `json:"right" mapstructure:"right" yaml:"right"`
	Bottom float64 `json:"bottom" mapstructure:"bottom" yaml:"bottom"`
}

// UniformHitSlop applies the same padding to all four sides.
func UniformHitSlop(v float64) HitSlop {
	return HitSlop{Top: v, Left: v, Right: v, Bottom: v}
}

// Clamp limits every side to [0, MaxHitSlop].
func (s HitSlop) Clamp() HitSlop {
	return HitSlop{
		Top:    clamp(s.Top, 0, MaxHitSlop),
		Left:   clamp(s.Left, 0, MaxHitSlop),
		Right:  clamp(s.Right, 0, MaxHitSlop),
		Bottom: clamp(s.Bottom, 0, MaxHitSlop),
	}
}

// Expand pads rect outward by slop on each side independently.
func Expand(rect Rect, slop HitSlop) Rect {
	return Rect{
		Top:    rect.Top - slop.Top,
		Left:   rect.Left - slop.Left,
		Right:  rect.Right + slop.Right,
		Bottom: rect.Bottom + slop.Bottom,
	}
}

// PointInRect is an inclusive containment test.
func PointInRect(p Point, r Rect) bool {
	return r.Left <= p.X && p.X <= r.Right && r.Top <= p.Y && p.Y <= r.Bottom
}

// RectsEqual compares all four edges exactly.
func RectsEqual(a, b Rect) bool {
	return a.Top == b.Top && a.Left == b.Left && a.Right == b.Right && a.Bottom == b.Bottom
}

// SegmentIntersectsRect reports whether the segment a-b touches r. Both
// endpoints, edge crossings and a degenerate segment (a == b) are covered;
// bounds are inclusive so zero-width or zero-height rects still register hits.
//
// Implemented as Liang-Barsky clipping: the segment is parameterised as
// a + t(b-a) for t in [0,1] and narrowed against each of the four edges.
func SegmentIntersectsRect(a, b Point, r Rect) bool {
	if PointInRect(a, r) || PointInRect(b, r) {
		return true
	}

	dx := b.X - a.X
	dy := b.Y - a.Y
	t0, t1 := 0.0, 1.0

	clip := func(p, q float64) bool {
		if p == 0 {
			// Parallel to this edge: reject if outside it.
			return q >= 0
		}
		ratio := q / p
		if p < 0 {
			if ratio > t1 {
				return false
			}
			if ratio > t0 {
				t0 = ratio
			}
		} else {
			if ratio < t0 {
				return false
			}
			if ratio < t1 {
				t1 = ratio
			}
		}
		return true
	}

	if !clip(-dx, a.X-r.Left) {
		return false
	}
	if !clip(dx, r.Right-a.X) {
		return false
	}
	if !clip(-dy, a.Y-r.Top) {
		return false
	}
	if !clip(dy, r.Bottom-a.Y) {
		return false
	}
	return t0 <= t1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

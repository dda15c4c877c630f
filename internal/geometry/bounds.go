package geometry

// ElementBounds pairs an element's measured rect with its hit-slop expansion.
// Build it with NewElementBounds or WithRect so both rects stay in step.
type ElementBounds struct {
	OriginalRect Rect    `json:"originalRect"`
	ExpandedRect Rect    `json:"expandedRect"`
	HitSlop      HitSlop `json:"hitSlop"`
}

// NewElementBounds computes the expanded rect for original and slop.
func NewElementBounds(original Rect, slop HitSlop) ElementBounds {
	return ElementBounds{
		OriginalRect: original,
		ExpandedRect: Expand(original, slop),
		HitSlop:      slop,
	}
}

// WithRect returns bounds for a new measured rect, keeping the hit slop.
func (b ElementBounds) WithRect(original Rect) ElementBounds {
	return NewElementBounds(original, b.HitSlop)
}

// WithHitSlop returns bounds for a new hit slop, keeping the measured rect.
func (b ElementBounds) WithHitSlop(slop HitSlop) ElementBounds {
	return NewElementBounds(b.OriginalRect, slop)
}

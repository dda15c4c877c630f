package registry

import (
	"github.com/xkilldash9x/foresight/internal/dom"
)

// Registry maps elements to their tracked state, preserving registration
// order for deterministic iteration.
type Registry struct {
	byElement map[dom.Element]*TrackedElement
	order     []*TrackedElement
}

func New() *Registry {
	return &Registry{byElement: make(map[dom.Element]*TrackedElement)}
}

// Add stores t. An element already present is replaced.
func (r *Registry) Add(t *TrackedElement) {
	if _, ok := r.byElement[t.Element]; ok {
		r.Remove(t.Element)
	}
	r.byElement[t.Element] = t
	r.order = append(r.order, t)
}

// Get looks up the tracked state for el.
func (r *Registry) Get(el dom.Element) (*TrackedElement, bool) {
	if el == nil {
		return nil, false
	}
	t, ok := r.byElement[el]
	return t, ok
}

// Contains reports whether t is the currently tracked entry for its element.
// A stale pointer to a removed and re-registered element reports false.
func (r *Registry) Contains(t *TrackedElement) bool {
	cur, ok := r.byElement[t.Element]
	return ok && cur == t
}

// Remove drops el and returns its state.
func (r *Registry) Remove(el dom.Element) (*TrackedElement, bool) {
	t, ok := r.byElement[el]
	if !ok {
		return nil, false
	}
	delete(r.byElement, el)
	for i, cur := range r.order {
		if cur == t {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return t, true
}

func (r *Registry) Len() int { return len(r.order) }

// Elements returns a stable snapshot in registration order. Mutating the
// registry while iterating the result is safe.
func (r *Registry) Elements() []*TrackedElement {
	out := make([]*TrackedElement, len(r.order))
	copy(out, r.order)
	return out
}

// ActiveCount is the number of elements whose callbacks may still fire.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, t := range r.order {
		if t.Info.IsActive {
			n++
		}
	}
	return n
}

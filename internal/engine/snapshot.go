package engine

import (
	"github.com/xkilldash9x/foresight/api/schemas"
	"github.com/xkilldash9x/foresight/internal/dom"
	"github.com/xkilldash9x/foresight/internal/events"
	"github.com/xkilldash9x/foresight/internal/settings"
)

// Snapshot is a point-in-time copy of the manager's state.
type Snapshot struct {
	Elements           []schemas.ElementData  `json:"elements"`
	Settings           settings.Settings      `json:"settings"`
	HitCounters        schemas.HitCounters    `json:"hitCounters"`
	DeviceStrategy     dom.PointerType        `json:"deviceStrategy"`
	TouchStrategy      settings.TouchStrategy `json:"touchStrategy,omitempty"`
	ActiveElementCount int                    `json:"activeElementCount"`
	ListenersAttached  bool                   `json:"listenersAttached"`
	EventListeners     map[events.Kind]int    `json:"eventListeners"`
}

// Snapshot copies the registry, settings and counters.
func (m *Manager) Snapshot() Snapshot {
	m.lock()
	defer m.unlock()

	elements := m.registry.Elements()
	s := Snapshot{
		Elements:           make([]schemas.ElementData, 0, len(elements)),
		Settings:           m.settings,
		HitCounters:        m.counters,
		DeviceStrategy:     m.pointerType,
		TouchStrategy:      m.touch.Strategy(),
		ActiveElementCount: m.registry.ActiveCount(),
		ListenersAttached:  m.listenersAttached(),
		EventListeners:     m.emitter.ListenerCounts(),
	}
	for _, t := range elements {
		s.Elements = append(s.Elements, t.Snapshot())
	}
	return s
}

// Element returns the snapshot of el, if tracked.
func (m *Manager) Element(el dom.Element) (schemas.ElementData, bool) {
	m.lock()
	defer m.unlock()
	t, ok := m.registry.Get(el)
	if !ok {
		return schemas.ElementData{}, false
	}
	return t.Snapshot(), true
}

package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
)

// Layer is anything that can be added to a map
type Layer interface {
	OnAdd(m *Map) errorsx.Error
	OnRemove(m *Map)
}

// mapListeners tracks handlers a layer registered on its map, so they can all be removed together
type mapListeners struct {
	ids map[string][]HandlerID
}

func (ml *mapListeners) on(m *Map, eventType string, handler Handler) {
	if ml.ids == nil {
		ml.ids = make(map[string][]HandlerID)
	}

	ml.ids[eventType] = append(ml.ids[eventType], m.On(eventType, handler))
}

func (ml *mapListeners) offAll(m *Map) {
	for eventType, ids := range ml.ids {
		for _, id := range ids {
			m.Off(eventType, id)
		}
	}
	ml.ids = nil
}

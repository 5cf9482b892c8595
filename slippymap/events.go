package slippymap

import (
	"github.com/jamesrr39/headlessmap/dom"
)

// Event is fired by maps and layers
type Event struct {
	Type   string
	Target interface{}

	Layer Layer
	Popup *Popup

	// tile events
	Tile   *dom.Element
	Coords TileCoords
	Err    error

	// resize events
	OldSize, NewSize Point

	// mouse events
	LatLng         LatLng
	ContainerPoint Point
	LayerPoint     Point
	OriginalEvent  *dom.Event
}

type Handler func(event *Event)

type HandlerID int

type registeredHandler struct {
	id      HandlerID
	handler Handler
	once    bool
}

// Evented is embedded by everything that fires events
type Evented struct {
	nextID   HandlerID
	handlers map[string][]registeredHandler
}

func (ev *Evented) On(eventType string, handler Handler) HandlerID {
	return ev.add(eventType, handler, false)
}

// Once registers a handler that is removed after it first runs
func (ev *Evented) Once(eventType string, handler Handler) HandlerID {
	return ev.add(eventType, handler, true)
}

func (ev *Evented) add(eventType string, handler Handler, once bool) HandlerID {
	if ev.handlers == nil {
		ev.handlers = make(map[string][]registeredHandler)
	}

	ev.nextID++
	ev.handlers[eventType] = append(ev.handlers[eventType], registeredHandler{ev.nextID, handler, once})

	return ev.nextID
}

func (ev *Evented) Off(eventType string, id HandlerID) {
	handlers := ev.handlers[eventType]
	for i, h := range handlers {
		if h.id == id {
			ev.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// OffAll removes every handler for every event type
func (ev *Evented) OffAll() {
	ev.handlers = nil
}

func (ev *Evented) Listens(eventType string) bool {
	return len(ev.handlers[eventType]) > 0
}

// Fire runs the handlers registered for the event type. A nil event fires an empty one.
func (ev *Evented) Fire(eventType string, event *Event) {
	if event == nil {
		event = new(Event)
	}
	event.Type = eventType

	handlers := append([]registeredHandler(nil), ev.handlers[eventType]...)
	for _, h := range handlers {
		if h.once {
			ev.Off(eventType, h.id)
		}
		h.handler(event)
	}
}

package dom

// Event is a DOM-style event
type Event struct {
	Type    string
	Bubbles bool
	Detail  interface{}

	// mouse events
	ClientX, ClientY float64

	Target        *Element
	CurrentTarget *Element

	defaultPrevented   bool
	propagationStopped bool
}

func NewEvent(eventType string, bubbles bool) *Event {
	return &Event{Type: eventType, Bubbles: bubbles}
}

func (e *Event) PreventDefault() {
	e.defaultPrevented = true
}

func (e *Event) DefaultPrevented() bool {
	return e.defaultPrevented
}

func (e *Event) StopPropagation() {
	e.propagationStopped = true
}

type EventListener func(event *Event)

// ListenerID identifies a registered listener, so it can be removed
type ListenerID int

// EventTarget is implemented by anything that accepts event listeners
type EventTarget interface {
	AddEventListener(eventType string, listener EventListener) ListenerID
	RemoveEventListener(eventType string, id ListenerID)
}

var _ EventTarget = &Element{}

type registeredListener struct {
	id       ListenerID
	listener EventListener
}

type eventTargetState struct {
	nextID    ListenerID
	listeners map[string][]registeredListener
	handlers  map[string]EventListener
}

func (e *Element) AddEventListener(eventType string, listener EventListener) ListenerID {
	if e.events.listeners == nil {
		e.events.listeners = make(map[string][]registeredListener)
	}

	e.events.nextID++
	id := e.events.nextID
	e.events.listeners[eventType] = append(e.events.listeners[eventType], registeredListener{id, listener})

	return id
}

func (e *Element) RemoveEventListener(eventType string, id ListenerID) {
	listeners := e.events.listeners[eventType]
	for i, l := range listeners {
		if l.id == id {
			e.events.listeners[eventType] = append(listeners[:i:i], listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount is the number of listeners for the event type, not counting the on<type> handler
func (e *Element) ListenerCount(eventType string) int {
	return len(e.events.listeners[eventType])
}

// SetEventHandler assigns the on<type> property slot, e.g. onload. nil clears it.
func (e *Element) SetEventHandler(eventType string, handler EventListener) {
	if e.events.handlers == nil {
		e.events.handlers = make(map[string]EventListener)
	}

	if handler == nil {
		delete(e.events.handlers, eventType)
		return
	}

	e.events.handlers[eventType] = handler
}

func (e *Element) EventHandler(eventType string) EventListener {
	return e.events.handlers[eventType]
}

// DispatchEvent runs the handler slot and listeners on e, then on each ancestor if the event bubbles.
// It returns false if a listener called PreventDefault.
func (e *Element) DispatchEvent(event *Event) bool {
	event.Target = e

	for current := e; current != nil; current = current.ParentElement() {
		event.CurrentTarget = current
		current.invokeListeners(event)

		if !event.Bubbles || event.propagationStopped {
			break
		}
	}

	event.CurrentTarget = nil

	return !event.defaultPrevented
}

func (e *Element) invokeListeners(event *Event) {
	handler := e.events.handlers[event.Type]
	if handler != nil {
		handler(event)
	}

	// listeners added or removed while dispatching don't change this dispatch
	listeners := append([]registeredListener(nil), e.events.listeners[event.Type]...)
	for _, l := range listeners {
		l.listener(event)
	}
}

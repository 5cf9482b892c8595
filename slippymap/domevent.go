package slippymap

import (
	"fmt"
	"reflect"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
)

// TypeError is returned when an event target lacks the listener methods an operation needs
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string {
	return "TypeError: " + e.Message
}

// LegacyEventTarget is the attachEvent/detachEvent listener surface of older DOM implementations
type LegacyEventTarget interface {
	AttachEvent(eventType string, listener dom.EventListener) dom.ListenerID
	DetachEvent(eventType string, id dom.ListenerID)
}

// TargetAdapter supplies listener methods for a target type that has none
type TargetAdapter interface {
	AddEventListener(target interface{}, eventType string, listener dom.EventListener) dom.ListenerID
	RemoveEventListener(target interface{}, eventType string, id dom.ListenerID)
}

// DomEvent binds DOM listeners for the library. Its entry points are fields so the environment can wrap them.
type DomEvent struct {
	On               func(target interface{}, eventType string, listener dom.EventListener) (dom.ListenerID, errorsx.Error)
	Off              func(target interface{}, eventType string, id dom.ListenerID) errorsx.Error
	GetMousePosition func(event *dom.Event, container *dom.Element) Point

	adapters map[reflect.Type]TargetAdapter
}

func NewDomEvent() *DomEvent {
	d := &DomEvent{
		adapters: make(map[reflect.Type]TargetAdapter),
	}
	d.On = d.on
	d.Off = d.off
	d.GetMousePosition = LayoutMousePosition

	return d
}

// RegisterTargetAdapter installs an adapter for targets of exactly this dynamic type
func (d *DomEvent) RegisterTargetAdapter(targetType reflect.Type, adapter TargetAdapter) {
	d.adapters[targetType] = adapter
}

func (d *DomEvent) HasTargetAdapter(targetType reflect.Type) bool {
	_, ok := d.adapters[targetType]
	return ok
}

func (d *DomEvent) on(target interface{}, eventType string, listener dom.EventListener) (dom.ListenerID, errorsx.Error) {
	switch t := target.(type) {
	case dom.EventTarget:
		return t.AddEventListener(eventType, listener), nil
	case LegacyEventTarget:
		return t.AttachEvent(eventType, listener), nil
	}

	adapter, ok := d.adapters[reflect.TypeOf(target)]
	if ok {
		return adapter.AddEventListener(target, eventType, listener), nil
	}

	return 0, errorsx.Wrap(&TypeError{"target.attachEvent is not a function"}, "targetType", fmt.Sprintf("%T", target), "eventType", eventType)
}

func (d *DomEvent) off(target interface{}, eventType string, id dom.ListenerID) errorsx.Error {
	switch t := target.(type) {
	case dom.EventTarget:
		t.RemoveEventListener(eventType, id)
		return nil
	case LegacyEventTarget:
		t.DetachEvent(eventType, id)
		return nil
	}

	adapter, ok := d.adapters[reflect.TypeOf(target)]
	if ok {
		adapter.RemoveEventListener(target, eventType, id)
		return nil
	}

	return errorsx.Wrap(&TypeError{"target.detachEvent is not a function"}, "targetType", fmt.Sprintf("%T", target), "eventType", eventType)
}

// LayoutMousePosition positions a mouse event using the container's offset layout properties
func LayoutMousePosition(event *dom.Event, container *dom.Element) Point {
	if container == nil {
		return Point{event.ClientX, event.ClientY}
	}

	return Point{
		X: event.ClientX - container.OffsetLeft() - container.ClientLeft(),
		Y: event.ClientY - container.OffsetTop() - container.ClientTop(),
	}
}

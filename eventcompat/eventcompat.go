// Package eventcompat adapts the map library's DOM event handling to the headless environment:
// native canvases get no-op listener methods, and detaching from targets without them is not an error.
package eventcompat

import (
	"reflect"
	"strings"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
)

var (
	patchedMu sync.Mutex
	patched   = make(map[*slippymap.Library]bool)
)

// PatchEventCompatibility patches a library's DomEvent. Patching the same library again does nothing.
func PatchEventCompatibility(lib *slippymap.Library) errorsx.Error {
	patchedMu.Lock()
	defer patchedMu.Unlock()

	if patched[lib] {
		return nil
	}

	domEvent := lib.DomEvent

	// the exported type, and the dynamic type of a constructed canvas in case they differ
	canvasTypes := []reflect.Type{reflect.TypeOf((*rasterengine.Canvas)(nil))}
	instance, err := rasterengine.NewCanvas(1, 1)
	if err != nil {
		return errorsx.Wrap(err, "reason", "constructing a probe canvas")
	}
	canvasTypes = append(canvasTypes, reflect.TypeOf(instance))

	for _, canvasType := range canvasTypes {
		if !domEvent.HasTargetAdapter(canvasType) {
			domEvent.RegisterTargetAdapter(canvasType, noopTarget{})
		}
	}

	off := domEvent.Off
	domEvent.Off = func(target interface{}, eventType string, id dom.ListenerID) errorsx.Error {
		err := off(target, eventType, id)
		if IsMissingDetachError(err) {
			return nil
		}

		return err
	}

	domEvent.GetMousePosition = BoundingRectMousePosition

	patched[lib] = true

	return nil
}

// IsMissingDetachError reports whether err is the TypeError of a target that has no way to remove listeners
func IsMissingDetachError(err error) bool {
	if err == nil {
		return false
	}

	typeErr, ok := errorsx.Cause(err).(*slippymap.TypeError)
	if !ok {
		return false
	}

	return strings.Contains(typeErr.Message, "detachEvent")
}

// noopTarget accepts listeners and never calls them
type noopTarget struct{}

func (noopTarget) AddEventListener(target interface{}, eventType string, listener dom.EventListener) dom.ListenerID {
	return 0
}

func (noopTarget) RemoveEventListener(target interface{}, eventType string, id dom.ListenerID) {}

// BoundingRectMousePosition positions a mouse event relative to the container's bounding rectangle, inside its border
func BoundingRectMousePosition(event *dom.Event, container *dom.Element) slippymap.Point {
	if container == nil {
		return slippymap.Point{X: event.ClientX, Y: event.ClientY}
	}

	rect := container.GetBoundingClientRect()

	return slippymap.Point{
		X: event.ClientX - rect.Left - container.ClientLeft(),
		Y: event.ClientY - rect.Top - container.ClientTop(),
	}
}

// ResetForTests forgets which libraries were patched
func ResetForTests() {
	patchedMu.Lock()
	defer patchedMu.Unlock()

	patched = make(map[*slippymap.Library]bool)
}

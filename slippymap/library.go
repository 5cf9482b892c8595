// Package slippymap is a DOM-building slippy map library: a map with panes, tile layers,
// markers, vector paths drawn on canvases and popups. It only talks to the dom package;
// anything that needs layout or pixels is supplied by the environment it runs in.
package slippymap

import (
	"strings"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
)

// Scheduler schedules animation frame callbacks and callbacks deferred to the next loop pass
type Scheduler interface {
	RequestAnimationFrame(fn func(time.Time)) envshim.FrameID
	CancelAnimationFrame(id envshim.FrameID)
	Defer(fn func()) *envshim.Immediate
	CancelDeferred(immediate *envshim.Immediate)
}

var _ Scheduler = &envshim.Globals{}

// View is a map centre and zoom level
type View struct {
	Center LatLng
	Zoom   float64
}

type MapOptions struct {
	// View is set on creation when non-nil
	View *View

	MinZoom  float64
	MaxZoom  float64
	ZoomSnap float64

	FadeAnimation       bool
	ZoomAnimation       bool
	MarkerZoomAnimation bool

	// PreferCanvas makes vector paths use a shared canvas renderer. There is no other vector renderer,
	// so without it every path needs an explicit Renderer.
	PreferCanvas bool
	Renderer     *CanvasRenderer

	// Sizer reports the container size. nil reads the container's layout properties.
	Sizer Sizer
}

// Library is the map library namespace: its defaults and factories
type Library struct {
	logger    *logpkg.Logger
	doc       *dom.Document
	scheduler Scheduler

	MapDefaults MapOptions
	// IconDefaultImagePath is the directory, as a URL, holding the default marker images
	IconDefaultImagePath string
	DomEvent             *DomEvent
}

func NewLibrary(logger *logpkg.Logger, doc *dom.Document, scheduler Scheduler) *Library {
	return &Library{
		logger:    logger,
		doc:       doc,
		scheduler: scheduler,
		MapDefaults: MapOptions{
			MinZoom:             0,
			MaxZoom:             18,
			ZoomSnap:            1,
			FadeAnimation:       true,
			ZoomAnimation:       true,
			MarkerZoomAnimation: true,
		},
		DomEvent: NewDomEvent(),
	}
}

func (lib *Library) Document() *dom.Document {
	return lib.doc
}

func (lib *Library) Scheduler() Scheduler {
	return lib.scheduler
}

func (lib *Library) Logger() *logpkg.Logger {
	return lib.logger
}

// DefaultIcon is the standard marker icon, with images under IconDefaultImagePath
func (lib *Library) DefaultIcon() *Icon {
	return NewIcon(IconOptions{
		IconURL:      lib.iconImageURL("marker-icon.png"),
		ShadowURL:    lib.iconImageURL("marker-shadow.png"),
		IconSize:     Point{25, 41},
		IconAnchor:   &Point{12, 41},
		PopupAnchor:  Point{1, -34},
		ShadowSize:   Point{41, 41},
		ShadowAnchor: &Point{12, 41},
	})
}

func (lib *Library) iconImageURL(name string) string {
	if lib.IconDefaultImagePath == "" {
		return name
	}

	return strings.TrimSuffix(lib.IconDefaultImagePath, "/") + "/" + name
}

// NewMapInBody creates a container div in the document body and a map in it
func (lib *Library) NewMapInBody(options MapOptions) (*Map, errorsx.Error) {
	container, err := createElement(lib.doc, "div", "", lib.doc.Body())
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return lib.NewMap(container, options)
}

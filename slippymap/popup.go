package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
)

// PopupOptions configures a popup. Start from DefaultPopupOptions.
type PopupOptions struct {
	// Offset moves the popup tip from its anchor
	Offset    Point
	MinWidth  float64
	MaxWidth  float64
	AutoClose bool
	ClassName string
	Pane      string
}

func DefaultPopupOptions() PopupOptions {
	return PopupOptions{
		Offset:    Point{0, 7},
		MinWidth:  50,
		MaxWidth:  300,
		AutoClose: true,
		Pane:      PanePopup,
	}
}

// Popup is a text bubble pointing at a location
type Popup struct {
	Evented
	listeners mapListeners

	options   PopupOptions
	latlng    LatLng
	hasLatLng bool
	content   string

	// source is the layer the popup is bound to
	source *Marker

	m         *Map
	container *dom.Element
	contentEl *dom.Element
}

func NewPopup(options PopupOptions) *Popup {
	if options.Pane == "" {
		options.Pane = PanePopup
	}

	return &Popup{options: options}
}

func (p *Popup) Options() PopupOptions {
	return p.options
}

func (p *Popup) SetLatLng(latlng LatLng) {
	p.latlng = latlng
	p.hasLatLng = true
	p.updatePosition()
}

func (p *Popup) GetLatLng() LatLng {
	return p.latlng
}

// SetContent sets the popup's content, as HTML
func (p *Popup) SetContent(content string) {
	p.content = content
	p.updateContent()
}

func (p *Popup) GetContent() string {
	return p.content
}

// Anchor is where the popup tip points, relative to its location: the popup anchor of the marker it is bound to
func (p *Popup) Anchor() Point {
	if p.source == nil {
		return Point{}
	}

	return p.source.popupAnchor()
}

// Source is the marker the popup is bound to, or nil
func (p *Popup) Source() *Marker {
	return p.source
}

func (p *Popup) IsOpen() bool {
	return p.m != nil
}

// OpenOn opens the popup on a map
func (p *Popup) OpenOn(m *Map) errorsx.Error {
	return m.OpenPopup(p)
}

func (p *Popup) Close() {
	if p.m != nil {
		p.m.ClosePopup(p)
	}
}

// Element is the popup's container element, nil when closed
func (p *Popup) Element() *dom.Element {
	return p.container
}

func (p *Popup) OnAdd(m *Map) errorsx.Error {
	if !p.hasLatLng {
		return errorsx.Errorf("popup has no location: call SetLatLng first")
	}

	doc := m.lib.doc

	container, err := createElement(doc, "div", "leaflet-popup leaflet-zoom-animated "+p.options.ClassName, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}

	wrapper, err := createElement(doc, "div", "leaflet-popup-content-wrapper", container)
	if err != nil {
		return errorsx.Wrap(err)
	}

	contentEl, err := createElement(doc, "div", "leaflet-popup-content", wrapper)
	if err != nil {
		return errorsx.Wrap(err)
	}

	tipContainer, err := createElement(doc, "div", "leaflet-popup-tip-container", container)
	if err != nil {
		return errorsx.Wrap(err)
	}

	_, err = createElement(doc, "div", "leaflet-popup-tip", tipContainer)
	if err != nil {
		return errorsx.Wrap(err)
	}

	_, err = m.GetPane(p.options.Pane).AppendChild(container)
	if err != nil {
		return errorsx.Wrap(err)
	}

	p.m = m
	p.container = container
	p.contentEl = contentEl

	p.updateContent()
	p.updatePosition()

	p.listeners.on(m, "viewreset", func(event *Event) {
		p.updatePosition()
	})

	m.Fire("popupopen", &Event{Target: m, Popup: p})
	p.Fire("popupopen", &Event{Target: p, Popup: p})
	if p.source != nil {
		p.source.Fire("popupopen", &Event{Target: p.source, Popup: p})
	}

	return nil
}

func (p *Popup) OnRemove(m *Map) {
	p.listeners.offAll(m)
	p.container.Remove()

	p.m = nil
	p.container = nil
	p.contentEl = nil

	m.Fire("popupclose", &Event{Target: m, Popup: p})
	p.Fire("popupclose", &Event{Target: p, Popup: p})
	if p.source != nil {
		p.source.Fire("popupclose", &Event{Target: p.source, Popup: p})
	}
}

func (p *Popup) updateContent() {
	if p.contentEl == nil {
		return
	}

	err := p.contentEl.SetInnerHTML(p.content)
	if err != nil {
		p.contentEl.SetTextContent(p.content)
	}
}

// updatePosition places the container at the popup's location. Its size is unknown without layout,
// so it is not shifted to sit above the tip.
func (p *Popup) updatePosition() {
	if p.m == nil || !p.m.IsLoaded() {
		return
	}

	pos := p.m.LatLngToLayerPoint(p.latlng).Add(p.Anchor()).Add(p.options.Offset)
	SetPosition(p.container, pos)
}

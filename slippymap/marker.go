package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
)

// MarkerOptions configures a marker. Start from DefaultMarkerOptions.
type MarkerOptions struct {
	// Icon nil uses the library's default icon
	Icon         *Icon
	Opacity      float64
	ZIndexOffset int
	Title        string
	Alt          string
	Pane         string
	ShadowPane   string
}

func DefaultMarkerOptions() MarkerOptions {
	return MarkerOptions{
		Opacity:    1,
		Pane:       PaneMarker,
		ShadowPane: PaneShadow,
	}
}

type Marker struct {
	Evented
	listeners mapListeners

	latlng  LatLng
	options MarkerOptions

	m      *Map
	icon   *dom.Element
	shadow *dom.Element
	popup  *Popup
}

func NewMarker(latlng LatLng, options MarkerOptions) *Marker {
	if options.Pane == "" {
		options.Pane = PaneMarker
	}
	if options.ShadowPane == "" {
		options.ShadowPane = PaneShadow
	}

	return &Marker{
		latlng:  latlng,
		options: options,
	}
}

func (mk *Marker) GetLatLng() LatLng {
	return mk.latlng
}

func (mk *Marker) SetLatLng(latlng LatLng) {
	mk.latlng = latlng
	mk.update()

	if mk.popup != nil && mk.popup.IsOpen() {
		mk.popup.SetLatLng(latlng)
	}

	mk.Fire("move", &Event{Target: mk, LatLng: latlng})
}

// Icon is the marker's icon, resolving the default icon once the marker is on a map
func (mk *Marker) Icon() *Icon {
	if mk.options.Icon == nil && mk.m != nil {
		mk.options.Icon = mk.m.lib.DefaultIcon()
	}

	return mk.options.Icon
}

// Element is the icon image element, nil when the marker is not on a map
func (mk *Marker) Element() *dom.Element {
	return mk.icon
}

func (mk *Marker) ShadowElement() *dom.Element {
	return mk.shadow
}

func (mk *Marker) OnAdd(m *Map) errorsx.Error {
	mk.m = m

	err := mk.initIcon()
	if err != nil {
		mk.removeIcon()
		mk.m = nil
		return errorsx.Wrap(err)
	}

	mk.listeners.on(m, "viewreset", func(event *Event) {
		mk.update()
	})
	mk.update()

	return nil
}

func (mk *Marker) OnRemove(m *Map) {
	if mk.popup != nil && mk.popup.IsOpen() {
		m.ClosePopup(mk.popup)
	}

	mk.listeners.offAll(m)
	mk.removeIcon()
	mk.m = nil
}

func (mk *Marker) initIcon() errorsx.Error {
	doc := mk.m.lib.doc
	icon := mk.Icon()

	iconEl, err := icon.CreateIcon(doc)
	if err != nil {
		return errorsx.Wrap(err)
	}
	if mk.options.Title != "" {
		iconEl.SetAttribute("title", mk.options.Title)
	}
	if mk.options.Alt != "" {
		iconEl.SetAttribute("alt", mk.options.Alt)
	}
	iconEl.AddClass("leaflet-interactive")
	if mk.m.options.MarkerZoomAnimation {
		iconEl.AddClass("leaflet-zoom-animated")
	}
	mk.icon = iconEl

	shadowEl, err := icon.CreateShadow(doc)
	if err != nil {
		return errorsx.Wrap(err)
	}
	mk.shadow = shadowEl

	mk.updateOpacity()

	_, err = mk.m.GetPane(mk.options.Pane).AppendChild(iconEl)
	if err != nil {
		return errorsx.Wrap(err)
	}

	if shadowEl != nil {
		_, err = mk.m.GetPane(mk.options.ShadowPane).AppendChild(shadowEl)
		if err != nil {
			return errorsx.Wrap(err)
		}
	}

	return nil
}

func (mk *Marker) removeIcon() {
	if mk.icon != nil {
		mk.icon.Remove()
		mk.icon = nil
	}
	if mk.shadow != nil {
		mk.shadow.Remove()
		mk.shadow = nil
	}
}

// SetIcon replaces the icon, recreating the image elements if the marker is on a map
func (mk *Marker) SetIcon(icon *Icon) errorsx.Error {
	mk.options.Icon = icon
	if mk.m == nil {
		return nil
	}

	mk.removeIcon()

	err := mk.initIcon()
	if err != nil {
		return errorsx.Wrap(err)
	}
	mk.update()

	return nil
}

func (mk *Marker) SetOpacity(opacity float64) {
	mk.options.Opacity = opacity
	mk.updateOpacity()
}

func (mk *Marker) updateOpacity() {
	for _, el := range []*dom.Element{mk.icon, mk.shadow} {
		if el == nil {
			continue
		}
		if mk.options.Opacity >= 1 {
			el.Style.Remove("opacity")
			continue
		}
		el.Style.Set("opacity", formatFloat(mk.options.Opacity))
	}
}

func (mk *Marker) update() {
	if mk.m == nil || !mk.m.IsLoaded() || mk.icon == nil {
		return
	}

	pos := mk.m.LatLngToLayerPoint(mk.latlng).Round()

	SetPosition(mk.icon, pos)
	mk.icon.Style.Set("z-index", formatFloat(pos.Y+float64(mk.options.ZIndexOffset)))

	if mk.shadow != nil {
		SetPosition(mk.shadow, pos)
	}
}

// BindPopup attaches a popup that opens at the marker
func (mk *Marker) BindPopup(content string, options PopupOptions) *Popup {
	popup := NewPopup(options)
	popup.SetContent(content)
	popup.source = mk

	mk.popup = popup

	return popup
}

func (mk *Marker) GetPopup() *Popup {
	return mk.popup
}

func (mk *Marker) OpenPopup() errorsx.Error {
	if mk.popup == nil {
		return errorsx.Errorf("marker has no popup bound")
	}
	if mk.m == nil {
		return errorsx.Errorf("marker is not on a map")
	}

	mk.popup.SetLatLng(mk.latlng)

	return mk.m.OpenPopup(mk.popup)
}

func (mk *Marker) ClosePopup() {
	if mk.popup != nil && mk.m != nil {
		mk.m.ClosePopup(mk.popup)
	}
}

// popupAnchor is where a bound popup points, relative to the marker's position
func (mk *Marker) popupAnchor() Point {
	icon := mk.Icon()
	if icon == nil {
		return Point{}
	}

	return icon.Options.PopupAnchor
}

package slippymap

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
)

type IconOptions struct {
	IconURL   string
	ShadowURL string

	// IconSize is the image size. Zero leaves the image at its natural size.
	IconSize Point
	// IconAnchor is the point of the icon at the marker's location. nil means the centre of the icon.
	IconAnchor *Point
	// PopupAnchor is where popups open, relative to the icon anchor
	PopupAnchor Point

	ShadowSize   Point
	ShadowAnchor *Point

	ClassName string
}

type Icon struct {
	Options IconOptions
}

func NewIcon(options IconOptions) *Icon {
	return &Icon{options}
}

// CreateIcon creates the icon's image element
func (ic *Icon) CreateIcon(doc *dom.Document) (*dom.Element, errorsx.Error) {
	if ic.Options.IconURL == "" {
		return nil, errorsx.Errorf("icon has no IconURL")
	}

	return ic.createImage(doc, ic.Options.IconURL, ic.Options.IconSize, ic.Options.IconAnchor, "leaflet-marker-icon")
}

// CreateShadow creates the shadow's image element, or returns nil if the icon has no shadow
func (ic *Icon) CreateShadow(doc *dom.Document) (*dom.Element, errorsx.Error) {
	if ic.Options.ShadowURL == "" {
		return nil, nil
	}

	anchor := ic.Options.ShadowAnchor
	if anchor == nil {
		anchor = ic.Options.IconAnchor
	}

	return ic.createImage(doc, ic.Options.ShadowURL, ic.Options.ShadowSize, anchor, "leaflet-marker-shadow")
}

func (ic *Icon) createImage(doc *dom.Document, src string, size Point, anchor *Point, className string) (*dom.Element, errorsx.Error) {
	if ic.Options.ClassName != "" {
		className += " " + ic.Options.ClassName
	}

	el, err := createElement(doc, "img", className, nil)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	el.SetAttribute("alt", "")

	setIconStyles(el, size, anchor)
	el.SetSrc(src)

	return el, nil
}

// setIconStyles sizes the image and shifts it so the anchor sits at the element's position
func setIconStyles(el *dom.Element, size Point, anchor *Point) {
	anchorPoint := size.DivideBy(2)
	if anchor != nil {
		anchorPoint = *anchor
	}

	if !anchorPoint.IsZero() {
		el.Style.SetPx("margin-left", -anchorPoint.X)
		el.Style.SetPx("margin-top", -anchorPoint.Y)
	}

	if !size.IsZero() {
		el.Style.SetPx("width", size.X)
		el.Style.SetPx("height", size.Y)
	}
}

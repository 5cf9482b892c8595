package slippymap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/dom"
)

// PositionProperty is the element property holding the position last given to SetPosition
const PositionProperty = "slippymap.position"

// SetPosition places an element with a translate3d transform and records the position on the element
func SetPosition(el *dom.Element, p Point) {
	el.SetProperty(PositionProperty, p)
	el.Style.Set("transform", fmt.Sprintf("translate3d(%spx, %spx, 0px)", formatFloat(p.X), formatFloat(p.Y)))
}

// GetPosition returns the position last given to SetPosition, or the origin
func GetPosition(el *dom.Element) Point {
	value, ok := el.Property(PositionProperty)
	if !ok {
		return Point{}
	}

	p, ok := value.(Point)
	if !ok {
		return Point{}
	}

	return p
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// createElement creates an element with classes and, if parent is non-nil, appends it to parent
func createElement(doc *dom.Document, tagName, className string, parent *dom.Element) (*dom.Element, errorsx.Error) {
	el, err := doc.CreateElement(tagName)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	className = strings.TrimSpace(className)
	if className != "" {
		el.SetClassName(className)
	}

	if parent != nil {
		_, err = parent.AppendChild(el)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	return el, nil
}

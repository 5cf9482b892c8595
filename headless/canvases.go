package headless

import (
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

// canvas elements start at the browser's default size
const (
	defaultCanvasWidth  = 300
	defaultCanvasHeight = 150
)

// installCanvasHooks backs every canvas element with a raster canvas.
// Setting the width or height attribute resizes and clears the backing canvas; the element reports the backing canvas' size.
func installCanvasHooks(logger *logpkg.Logger, doc *dom.Document, backings *BackingTable, fontResolver rasterengine.FontResolver) {
	doc.RegisterHooks("canvas", dom.ElementHooks{
		Created: func(el *dom.Element) errorsx.Error {
			canvas, err := rasterengine.NewCanvas(defaultCanvasWidth, defaultCanvasHeight)
			if err != nil {
				return errorsx.Wrap(err, "reason", "the raster engine cannot create a canvas")
			}

			_, err = canvas.GetContext("2d")
			if err != nil {
				return errorsx.Wrap(err, "reason", "the raster engine cannot create a 2d context")
			}

			if fontResolver != nil {
				canvas.SetFontResolver(fontResolver)
			}
			backings.canvases[el] = canvas

			return nil
		},
		AttributeChanged: func(el *dom.Element, name, value string) {
			if name != "width" && name != "height" {
				return
			}

			canvas, ok := backings.canvases[el]
			if !ok {
				return
			}

			width, height := canvas.Width(), canvas.Height()
			switch name {
			case "width":
				width = dimensionAttribute(el, "width", defaultCanvasWidth)
			case "height":
				height = dimensionAttribute(el, "height", defaultCanvasHeight)
			}

			err := canvas.Resize(width, height)
			if err != nil {
				logger.Error("resizing canvas to %dx%d: %s", width, height, err.Error())
			}
		},
		Dimensions: func(el *dom.Element) (int, int, bool) {
			canvas, ok := backings.canvases[el]
			if !ok {
				return 0, 0, false
			}

			return canvas.Width(), canvas.Height(), true
		},
		Detached: func(el *dom.Element) {
			delete(backings.canvases, el)
		},
	})
}

// dimensionAttribute reads a width or height attribute. A removed or unparseable attribute means the default.
func dimensionAttribute(el *dom.Element, name string, defaultValue int) int {
	var value int
	var ok bool
	switch name {
	case "width":
		value, ok = el.WidthAttribute()
	default:
		value, ok = el.HeightAttribute()
	}

	if !ok || value < 0 {
		return defaultValue
	}

	return value
}

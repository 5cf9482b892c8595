// Package compositor flattens a map's rendered DOM into one raster: tile and marker images and
// vector canvases are drawn in document order, then open popups are painted on top.
package compositor

import (
	"context"
	"errors"
	"math"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/resourceloader"
	"github.com/jamesrr39/headlessmap/slippymap"
)

var (
	ErrContainerUnavailable = errors.New("map container unavailable")
	ErrNoDrawableContent    = errors.New("map has no drawable content")
)

// drawableSelector matches the elements that contribute pixels
const drawableSelector = "canvas, img"

// Backings gives the native resources behind canvas and img elements
type Backings interface {
	Canvas(el *dom.Element) (*rasterengine.Canvas, bool)
	Image(el *dom.Element) (*rasterengine.Image, bool)
}

type Compositor struct {
	logger   *logpkg.Logger
	backings Backings
	fonts    rasterengine.FontResolver
}

// NewCompositor creates a Compositor. fonts may be nil, in which case popup text uses the default font.
func NewCompositor(logger *logpkg.Logger, backings Backings, fonts rasterengine.FontResolver) *Compositor {
	return &Compositor{
		logger:   logger,
		backings: backings,
		fonts:    fonts,
	}
}

// RenderToCanvas draws the map's current state onto a new canvas of the map's size.
// The map should be settled first: images still loading are skipped.
func (c *Compositor) RenderToCanvas(ctx context.Context, m *slippymap.Map) (*rasterengine.Canvas, errorsx.Error) {
	if m == nil || m.IsRemoved() || m.Container() == nil {
		return nil, errorsx.Wrap(ErrContainerUnavailable)
	}

	container := m.Container()

	size := m.GetSize()
	width, height := int(math.Round(size.X)), int(math.Round(size.Y))
	output, err := rasterengine.NewCanvas(width, height)
	if err != nil {
		return nil, errorsx.Wrap(err, "width", width, "height", height)
	}
	if c.fonts != nil {
		output.SetFontResolver(c.fonts)
	}

	outputCtx, err := output.GetContext("2d")
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	m.FlushRenderers()

	drawables := findDrawables(container)
	if len(drawables) == 0 {
		// vector renderers are created lazily, so add an invisible path to get a canvas
		forcing := slippymap.NewCircleMarker(m.GetCenter(), 1, slippymap.PathOptions{
			Color:       "#000000",
			FillColor:   "#000000",
			Interactive: false,
		})

		err = m.AddLayer(forcing)
		if err != nil {
			return nil, errorsx.Wrap(ErrNoDrawableContent, "reason", err.Error())
		}
		defer m.RemoveLayer(forcing)

		m.FlushRenderers()
		drawables = findDrawables(container)
		if len(drawables) == 0 {
			return nil, errorsx.Wrap(ErrNoDrawableContent)
		}
	}

	for _, el := range drawables {
		if ctx.Err() != nil {
			return nil, errorsx.Wrap(ctx.Err())
		}

		placement := placeElement(el, container)
		if placement.hidden || placement.opacity <= 0 {
			continue
		}

		outputCtx.SetGlobalAlpha(placement.opacity)

		switch el.TagName() {
		case "canvas":
			c.drawCanvas(outputCtx, el, placement.offset)
		case "img":
			c.drawImage(outputCtx, el, placement.offset)
		}
	}
	outputCtx.SetGlobalAlpha(1)

	for _, popup := range m.OpenPopups() {
		layout := LayoutPopup(outputCtx, m, popup)
		err = PaintPopup(outputCtx, layout)
		if err != nil {
			c.logger.Warn("painting popup: %s", err.Error())
		}
	}

	return output, nil
}

// findDrawables returns the canvas and img elements under the container in document order.
// Elements inside popups are left out; popups are painted separately.
func findDrawables(container *dom.Element) []*dom.Element {
	var drawables []*dom.Element
	for _, el := range container.QuerySelectorAll(drawableSelector) {
		if insidePopup(el, container) {
			continue
		}
		drawables = append(drawables, el)
	}

	return drawables
}

func insidePopup(el, container *dom.Element) bool {
	for parent := el.ParentElement(); parent != nil && parent != container; parent = parent.ParentElement() {
		if parent.HasClass("leaflet-popup") {
			return true
		}
	}

	return false
}

func (c *Compositor) drawCanvas(outputCtx *rasterengine.Context2D, el *dom.Element, offset slippymap.Point) {
	canvas, ok := c.backings.Canvas(el)
	if !ok {
		c.logger.Warn("skipping canvas element without a backing canvas")
		return
	}

	outputCtx.DrawImage(canvas.Image(), offset.X, offset.Y)
}

func (c *Compositor) drawImage(outputCtx *rasterengine.Context2D, el *dom.Element, offset slippymap.Point) {
	img, ok := c.backings.Image(el)
	if !ok {
		c.logger.Warn("skipping image that has not loaded: %q", resourceloader.Abbreviate(el.Src()))
		return
	}

	width, height := imageDrawSize(el, img)
	if width <= 0 || height <= 0 {
		return
	}

	outputCtx.DrawImageScaled(img.Raster(), offset.X, offset.Y, width, height)
}

// imageDrawSize picks each dimension from the CSS style, then the attribute, then the decoded image
func imageDrawSize(el *dom.Element, img *rasterengine.Image) (float64, float64) {
	width, height := float64(img.Width()), float64(img.Height())

	if value, ok := dom.ParsePx(el.Style.Get("width")); ok {
		width = value
	} else if value, ok := el.WidthAttribute(); ok {
		width = float64(value)
	}

	if value, ok := dom.ParsePx(el.Style.Get("height")); ok {
		height = value
	} else if value, ok := el.HeightAttribute(); ok {
		height = float64(value)
	}

	return width, height
}

package rasterengine

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
	"github.com/mazznoer/csscolorparser"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const DefaultFont = "10px sans-serif"

type drawState struct {
	fillStyle    string
	fillColor    color.NRGBA
	strokeStyle  string
	strokeColor  color.NRGBA
	lineWidth    float64
	lineCap      draw2d.LineCap
	lineJoin     draw2d.LineJoin
	lineDash     []float64
	globalAlpha  float64
	font         string
	textAlign    string
	textBaseline string
	translateX   float64
	translateY   float64
}

func defaultDrawState() drawState {
	return drawState{
		fillStyle:    "#000000",
		fillColor:    color.NRGBA{A: 0xff},
		strokeStyle:  "#000000",
		strokeColor:  color.NRGBA{A: 0xff},
		lineWidth:    1,
		lineCap:      draw2d.ButtCap,
		lineJoin:     draw2d.MiterJoin,
		globalAlpha:  1,
		font:         DefaultFont,
		textAlign:    "start",
		textBaseline: "alphabetic",
	}
}

// Context2D draws onto a Canvas with an API shaped like the browser's CanvasRenderingContext2D.
// Only translation is supported as a transform.
type Context2D struct {
	canvas *Canvas
	state  drawState
	saved  []drawState
	path   *draw2d.Path
}

func newContext2D(canvas *Canvas) *Context2D {
	return &Context2D{
		canvas: canvas,
		state:  defaultDrawState(),
		path:   new(draw2d.Path),
	}
}

func (ctx *Context2D) Canvas() *Canvas {
	return ctx.canvas
}

func (ctx *Context2D) Save() {
	saved := ctx.state
	saved.lineDash = append([]float64(nil), ctx.state.lineDash...)
	ctx.saved = append(ctx.saved, saved)
}

func (ctx *Context2D) Restore() {
	if len(ctx.saved) == 0 {
		return
	}
	ctx.state = ctx.saved[len(ctx.saved)-1]
	ctx.saved = ctx.saved[:len(ctx.saved)-1]
}

// ParseColor parses a CSS colour string ("#fff", "rgba(0,0,0,0.5)", "red", ...)
func ParseColor(s string) (color.NRGBA, errorsx.Error) {
	c, err := csscolorparser.Parse(s)
	if err != nil {
		return color.NRGBA{}, errorsx.Wrap(err, "color", s)
	}

	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, nil
}

func (ctx *Context2D) FillStyle() string {
	return ctx.state.fillStyle
}

func (ctx *Context2D) SetFillStyle(style string) errorsx.Error {
	c, err := ParseColor(style)
	if err != nil {
		return err
	}
	ctx.state.fillStyle = style
	ctx.state.fillColor = c

	return nil
}

func (ctx *Context2D) StrokeStyle() string {
	return ctx.state.strokeStyle
}

func (ctx *Context2D) SetStrokeStyle(style string) errorsx.Error {
	c, err := ParseColor(style)
	if err != nil {
		return err
	}
	ctx.state.strokeStyle = style
	ctx.state.strokeColor = c

	return nil
}

func (ctx *Context2D) LineWidth() float64 {
	return ctx.state.lineWidth
}

// SetLineWidth ignores zero, negative and non-finite widths
func (ctx *Context2D) SetLineWidth(width float64) {
	if width <= 0 || math.IsInf(width, 0) || math.IsNaN(width) {
		return
	}
	ctx.state.lineWidth = width
}

// SetLineCap accepts "butt", "round" and "square"
func (ctx *Context2D) SetLineCap(lineCap string) {
	switch lineCap {
	case "butt":
		ctx.state.lineCap = draw2d.ButtCap
	case "round":
		ctx.state.lineCap = draw2d.RoundCap
	case "square":
		ctx.state.lineCap = draw2d.SquareCap
	}
}

// SetLineJoin accepts "miter", "round" and "bevel"
func (ctx *Context2D) SetLineJoin(lineJoin string) {
	switch lineJoin {
	case "miter":
		ctx.state.lineJoin = draw2d.MiterJoin
	case "round":
		ctx.state.lineJoin = draw2d.RoundJoin
	case "bevel":
		ctx.state.lineJoin = draw2d.BevelJoin
	}
}

func (ctx *Context2D) SetLineDash(segments []float64) {
	ctx.state.lineDash = append([]float64(nil), segments...)
}

func (ctx *Context2D) GlobalAlpha() float64 {
	return ctx.state.globalAlpha
}

// SetGlobalAlpha ignores values outside 0 to 1
func (ctx *Context2D) SetGlobalAlpha(alpha float64) {
	if alpha < 0 || alpha > 1 || math.IsNaN(alpha) {
		return
	}
	ctx.state.globalAlpha = alpha
}

func (ctx *Context2D) Font() string {
	return ctx.state.font
}

func (ctx *Context2D) SetFont(font string) {
	ctx.state.font = font
}

func (ctx *Context2D) SetTextAlign(align string) {
	ctx.state.textAlign = align
}

func (ctx *Context2D) SetTextBaseline(baseline string) {
	ctx.state.textBaseline = baseline
}

func (ctx *Context2D) Translate(x, y float64) {
	ctx.state.translateX += x
	ctx.state.translateY += y
}

// ResetTransform removes any translation
func (ctx *Context2D) ResetTransform() {
	ctx.state.translateX = 0
	ctx.state.translateY = 0
}

func (ctx *Context2D) tx(x float64) float64 {
	return x + ctx.state.translateX
}

func (ctx *Context2D) ty(y float64) float64 {
	return y + ctx.state.translateY
}

func (ctx *Context2D) BeginPath() {
	ctx.path = new(draw2d.Path)
}

func (ctx *Context2D) MoveTo(x, y float64) {
	ctx.path.MoveTo(ctx.tx(x), ctx.ty(y))
}

func (ctx *Context2D) LineTo(x, y float64) {
	if ctx.path.IsEmpty() {
		ctx.MoveTo(x, y)
		return
	}
	ctx.path.LineTo(ctx.tx(x), ctx.ty(y))
}

func (ctx *Context2D) QuadraticCurveTo(cpx, cpy, x, y float64) {
	ctx.path.QuadCurveTo(ctx.tx(cpx), ctx.ty(cpy), ctx.tx(x), ctx.ty(y))
}

func (ctx *Context2D) BezierCurveTo(cp1x, cp1y, cp2x, cp2y, x, y float64) {
	ctx.path.CubicCurveTo(ctx.tx(cp1x), ctx.ty(cp1y), ctx.tx(cp2x), ctx.ty(cp2y), ctx.tx(x), ctx.ty(y))
}

func (ctx *Context2D) ClosePath() {
	if ctx.path.IsEmpty() {
		return
	}
	ctx.path.Close()
}

// Arc adds a circular arc. Angles are in radians, measured clockwise from the positive x axis.
func (ctx *Context2D) Arc(x, y, radius, startAngle, endAngle float64, anticlockwise bool) {
	if radius < 0 {
		return
	}

	ctx.path.ArcTo(ctx.tx(x), ctx.ty(y), radius, radius, startAngle, arcSweep(startAngle, endAngle, anticlockwise))
}

// Ellipse adds a full axis-aligned ellipse
func (ctx *Context2D) Ellipse(x, y, radiusX, radiusY float64) {
	if radiusX < 0 || radiusY < 0 {
		return
	}

	ctx.path.MoveTo(ctx.tx(x+radiusX), ctx.ty(y))
	ctx.path.ArcTo(ctx.tx(x), ctx.ty(y), radiusX, radiusY, 0, 2*math.Pi)
}

func arcSweep(startAngle, endAngle float64, anticlockwise bool) float64 {
	const fullCircle = 2 * math.Pi

	sweep := endAngle - startAngle
	if !anticlockwise {
		if sweep >= fullCircle {
			return fullCircle
		}
		for sweep < 0 {
			sweep += fullCircle
		}
		return sweep
	}

	if sweep <= -fullCircle {
		return -fullCircle
	}
	for sweep > 0 {
		sweep -= fullCircle
	}
	return sweep
}

func (ctx *Context2D) Rect(x, y, width, height float64) {
	draw2dkit.Rectangle(ctx.path, ctx.tx(x), ctx.ty(y), ctx.tx(x+width), ctx.ty(y+height))
}

// RoundRect adds a rectangle with corners of the given radius
func (ctx *Context2D) RoundRect(x, y, width, height, radius float64) {
	radius = math.Min(radius, math.Min(math.Abs(width), math.Abs(height))/2)
	if radius <= 0 {
		ctx.Rect(x, y, width, height)
		return
	}

	draw2dkit.RoundedRectangle(ctx.path, ctx.tx(x), ctx.ty(y), ctx.tx(x+width), ctx.ty(y+height), radius*2, radius*2)
}

func (ctx *Context2D) withAlpha(c color.NRGBA) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * ctx.state.globalAlpha))
	return c
}

func (ctx *Context2D) graphicContext() *draw2dimg.GraphicContext {
	gc := draw2dimg.NewGraphicContext(ctx.canvas.img)
	gc.SetLineWidth(ctx.state.lineWidth)
	gc.SetLineCap(ctx.state.lineCap)
	gc.SetLineJoin(ctx.state.lineJoin)
	if len(ctx.state.lineDash) > 0 {
		gc.SetLineDash(ctx.state.lineDash, 0)
	}
	gc.SetFillColor(ctx.withAlpha(ctx.state.fillColor))
	gc.SetStrokeColor(ctx.withAlpha(ctx.state.strokeColor))

	return gc
}

// Fill fills the current path. The path is kept, so it can be stroked afterwards.
func (ctx *Context2D) Fill() {
	if ctx.path.IsEmpty() {
		return
	}

	gc := ctx.graphicContext()
	defer gc.Close()

	gc.Fill(ctx.path.Copy())
}

func (ctx *Context2D) Stroke() {
	if ctx.path.IsEmpty() {
		return
	}

	gc := ctx.graphicContext()
	defer gc.Close()

	gc.Stroke(ctx.path.Copy())
}

func (ctx *Context2D) FillRect(x, y, width, height float64) {
	path := new(draw2d.Path)
	draw2dkit.Rectangle(path, ctx.tx(x), ctx.ty(y), ctx.tx(x+width), ctx.ty(y+height))

	gc := ctx.graphicContext()
	defer gc.Close()

	gc.Fill(path)
}

func (ctx *Context2D) StrokeRect(x, y, width, height float64) {
	path := new(draw2d.Path)
	draw2dkit.Rectangle(path, ctx.tx(x), ctx.ty(y), ctx.tx(x+width), ctx.ty(y+height))

	gc := ctx.graphicContext()
	defer gc.Close()

	gc.Stroke(path)
}

// ClearRect sets the pixels of the rectangle to transparent black
func (ctx *Context2D) ClearRect(x, y, width, height float64) {
	r := image.Rect(
		int(math.Floor(ctx.tx(x))),
		int(math.Floor(ctx.ty(y))),
		int(math.Ceil(ctx.tx(x+width))),
		int(math.Ceil(ctx.ty(y+height))),
	)

	draw.Draw(ctx.canvas.img, r.Intersect(ctx.canvas.img.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

func (ctx *Context2D) alphaMask() image.Image {
	if ctx.state.globalAlpha >= 1 {
		return nil
	}

	return image.NewUniform(color.Alpha{A: uint8(math.Round(ctx.state.globalAlpha * 0xff))})
}

// DrawImage draws src at its natural size with its top left corner at (dx, dy)
func (ctx *Context2D) DrawImage(src image.Image, dx, dy float64) {
	srcBounds := src.Bounds()
	x := int(math.Round(ctx.tx(dx)))
	y := int(math.Round(ctx.ty(dy)))
	r := image.Rect(x, y, x+srcBounds.Dx(), y+srcBounds.Dy())

	draw.DrawMask(ctx.canvas.img, r, src, srcBounds.Min, ctx.alphaMask(), image.Point{}, draw.Over)
}

// DrawImageScaled draws src scaled into the dw x dh rectangle at (dx, dy)
func (ctx *Context2D) DrawImageScaled(src image.Image, dx, dy, dw, dh float64) {
	srcBounds := src.Bounds()
	x := int(math.Round(ctx.tx(dx)))
	y := int(math.Round(ctx.ty(dy)))
	w := int(math.Round(dw))
	h := int(math.Round(dh))
	if w <= 0 || h <= 0 {
		return
	}

	if w == srcBounds.Dx() && h == srcBounds.Dy() {
		ctx.DrawImage(src, dx, dy)
		return
	}

	var opts *xdraw.Options
	if mask := ctx.alphaMask(); mask != nil {
		opts = &xdraw.Options{SrcMask: mask}
	}

	xdraw.BiLinear.Scale(ctx.canvas.img, image.Rect(x, y, x+w, y+h), src, srcBounds, xdraw.Over, opts)
}

var fontSizeRegexp = regexp.MustCompile(`(?:^|\s)(\d+(?:\.\d+)?)px(?:/\S+)?\s+(.+)$`)

// ParseFont splits a CSS font shorthand such as `bold 13px "Helvetica Neue", Arial` into its pixel size and family stack
func ParseFont(cssFont string) (sizePx float64, fontStack string) {
	matches := fontSizeRegexp.FindStringSubmatch(strings.TrimSpace(cssFont))
	if matches == nil {
		return 10, "sans-serif"
	}

	size, err := strconv.ParseFloat(matches[1], 64)
	if err != nil || size <= 0 {
		size = 10
	}

	return size, strings.TrimSpace(matches[2])
}

func (ctx *Context2D) face() (*truetype.Font, font.Face, float64) {
	size, stack := ParseFont(ctx.state.font)
	f := ctx.canvas.fontResolver.Resolve(stack)

	return f, truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72}), size
}

type TextMetrics struct {
	Width   float64
	Ascent  float64
	Descent float64
}

func (ctx *Context2D) MeasureText(text string) TextMetrics {
	_, face, _ := ctx.face()
	defer face.Close()

	metrics := face.Metrics()
	drawer := &font.Drawer{Face: face}

	return TextMetrics{
		Width:   fixedToFloat(drawer.MeasureString(text)),
		Ascent:  fixedToFloat(metrics.Ascent),
		Descent: fixedToFloat(metrics.Descent),
	}
}

// FillText draws text in the fill colour, positioned by the current text alignment and baseline
func (ctx *Context2D) FillText(text string, x, y float64) errorsx.Error {
	if text == "" {
		return nil
	}

	f, face, size := ctx.face()
	metrics := face.Metrics()
	width := fixedToFloat((&font.Drawer{Face: face}).MeasureString(text))
	face.Close()

	switch ctx.state.textAlign {
	case "center":
		x -= width / 2
	case "right", "end":
		x -= width
	}

	ascent := fixedToFloat(metrics.Ascent)
	descent := fixedToFloat(metrics.Descent)
	switch ctx.state.textBaseline {
	case "top", "hanging":
		y += ascent
	case "middle":
		y += (ascent - descent) / 2
	case "bottom", "ideographic":
		y -= descent
	}

	fc := freetype.NewContext()
	fc.SetDPI(72)
	fc.SetFont(f)
	fc.SetFontSize(size)
	fc.SetClip(ctx.canvas.img.Bounds())
	fc.SetDst(ctx.canvas.img)
	fc.SetSrc(image.NewUniform(ctx.withAlpha(ctx.state.fillColor)))

	_, err := fc.DrawString(text, fixed.Point26_6{
		X: floatToFixed(ctx.tx(x)),
		Y: floatToFixed(ctx.ty(y)),
	})
	if err != nil {
		return errorsx.Wrap(err, "text", text)
	}

	return nil
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

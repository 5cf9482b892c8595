package rasterengine

import (
	"errors"
	"image"

	"github.com/golang/freetype/truetype"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/fonts"
)

// MaxDimension is the largest width or height a canvas can have
const MaxDimension = 32767

var ErrContextUnavailable = errors.New("could not create a 2d drawing context")

// FontResolver maps a CSS font-family stack to a font
type FontResolver interface {
	Resolve(fontStack string) *truetype.Font
}

type defaultFontResolver struct{}

func (defaultFontResolver) Resolve(fontStack string) *truetype.Font {
	return fonts.DefaultFont()
}

// Canvas is a bitmap with a 2d drawing context
type Canvas struct {
	img          *image.RGBA
	ctx          *Context2D
	fontResolver FontResolver
}

func NewCanvas(width, height int) (*Canvas, errorsx.Error) {
	c := &Canvas{fontResolver: defaultFontResolver{}}

	err := c.Resize(width, height)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// SetFontResolver sets the resolver used for text drawn from now on
func (c *Canvas) SetFontResolver(resolver FontResolver) {
	c.fontResolver = resolver
}

func (c *Canvas) Width() int {
	return c.img.Rect.Dx()
}

func (c *Canvas) Height() int {
	return c.img.Rect.Dy()
}

// Resize replaces the bitmap with a transparent one and resets the drawing state, like assigning a canvas' width or height
func (c *Canvas) Resize(width, height int) errorsx.Error {
	if width < 0 || height < 0 || width > MaxDimension || height > MaxDimension {
		return errorsx.Wrap(ErrContextUnavailable, "width", width, "height", height)
	}

	c.img = image.NewRGBA(image.Rect(0, 0, width, height))
	c.ctx = newContext2D(c)

	return nil
}

// GetContext returns the canvas' drawing context. Only "2d" is supported.
func (c *Canvas) GetContext(contextType string) (*Context2D, errorsx.Error) {
	if contextType != "2d" {
		return nil, errorsx.Wrap(ErrContextUnavailable, "contextType", contextType)
	}

	return c.ctx, nil
}

// Image is the canvas' backing bitmap. It is replaced on Resize.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

func (c *Canvas) ToBuffer(format Format, quality int) ([]byte, errorsx.Error) {
	return EncodeToBytes(c.img, format, quality)
}

// ToDataURL encodes the canvas as a base64 data URL. An empty MIME type means PNG.
func (c *Canvas) ToDataURL(mimeType string) (string, errorsx.Error) {
	format, err := ParseFormat(mimeType)
	if err != nil {
		return "", err
	}

	return encodeDataURL(c.img, format, 0)
}

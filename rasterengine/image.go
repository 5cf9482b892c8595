package rasterengine

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	// registered decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jamesrr39/goutil/errorsx"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Image is a decoded raster
type Image struct {
	raster image.Image
	Format string
}

func NewImage(raster image.Image) *Image {
	return &Image{raster: raster}
}

// DecodeImage decodes PNG, JPEG, GIF, BMP or WebP bytes
func DecodeImage(data []byte) (*Image, errorsx.Error) {
	raster, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errorsx.Wrap(err, "length", len(data))
	}

	return &Image{raster, format}, nil
}

func (i *Image) Width() int {
	return i.raster.Bounds().Dx()
}

func (i *Image) Height() int {
	return i.raster.Bounds().Dy()
}

func (i *Image) Raster() image.Image {
	return i.raster
}

func NewImageWithBackground(r image.Rectangle, c color.Color) *image.RGBA {
	img := image.NewRGBA(r)

	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	return img
}

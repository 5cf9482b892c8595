package rasterengine

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/jamesrr39/goutil/errorsx"
)

type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

const DefaultJPEGQuality = 90

// ParseFormat accepts "png", "jpeg", "jpg" and the matching MIME types
func ParseFormat(s string) (Format, errorsx.Error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png", "image/png":
		return FormatPNG, nil
	case "jpeg", "jpg", "image/jpeg", "image/jpg":
		return FormatJPEG, nil
	default:
		return "", errorsx.Errorf("unsupported image format: %q", s)
	}
}

// FormatFromFilename picks the format from the file extension, defaulting to PNG
func FormatFromFilename(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

func (f Format) MimeType() string {
	return "image/" + string(f)
}

// Encode writes img in the given format. quality (1-100) only applies to JPEG; 0 means the default.
func Encode(w io.Writer, img image.Image, format Format, quality int) errorsx.Error {
	var err error
	switch format {
	case FormatPNG, "":
		err = png.Encode(w, img)
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		if quality > 100 {
			quality = 100
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return errorsx.Errorf("unsupported image format: %q", format)
	}
	if err != nil {
		return errorsx.Wrap(err, "format", format)
	}

	return nil
}

func EncodeToBytes(img image.Image, format Format, quality int) ([]byte, errorsx.Error) {
	buf := bytes.NewBuffer(nil)
	err := Encode(buf, img, format, quality)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeDataURL(img image.Image, format Format, quality int) (string, errorsx.Error) {
	data, err := EncodeToBytes(img, format, quality)
	if err != nil {
		return "", err
	}

	return "data:" + format.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

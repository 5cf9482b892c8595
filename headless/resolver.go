package headless

import (
	"math"
	"path/filepath"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/userextra"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/mazznoer/csscolorparser"
)

// ModuleResolver locates the directory holding the map library's default marker images
// (marker-icon.png and marker-shadow.png)
type ModuleResolver interface {
	ResolveImageDir() (string, errorsx.Error)
}

// DirResolver resolves to a fixed directory. A leading "~/" is expanded.
type DirResolver struct {
	Dir string
}

func (r DirResolver) ResolveImageDir() (string, errorsx.Error) {
	dir, err := userextra.ExpandUser(r.Dir)
	if err != nil {
		return "", errorsx.Wrap(err, "dir", r.Dir)
	}

	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", errorsx.Wrap(err, "dir", r.Dir)
	}

	return dir, nil
}

const (
	MarkerIconFileName   = "marker-icon.png"
	MarkerShadowFileName = "marker-shadow.png"

	DefaultMarkerColor = "#2a81cb"
)

// GeneratedIconsResolver draws the default marker images into Dir, unless they are already there
type GeneratedIconsResolver struct {
	Fs  gofs.Fs
	Dir string
	// Color is the marker's CSS colour; empty means DefaultMarkerColor
	Color string
}

func (r GeneratedIconsResolver) ResolveImageDir() (string, errorsx.Error) {
	dir, err := DirResolver{r.Dir}.ResolveImageDir()
	if err != nil {
		return "", err
	}

	iconPath := filepath.Join(dir, MarkerIconFileName)
	shadowPath := filepath.Join(dir, MarkerShadowFileName)

	_, iconStatErr := r.Fs.Stat(iconPath)
	_, shadowStatErr := r.Fs.Stat(shadowPath)
	if iconStatErr == nil && shadowStatErr == nil {
		return dir, nil
	}

	markerColor := r.Color
	if markerColor == "" {
		markerColor = DefaultMarkerColor
	}

	icon, err := DrawMarkerIcon(markerColor)
	if err != nil {
		return "", errorsx.Wrap(err)
	}

	shadow, err := DrawMarkerShadow()
	if err != nil {
		return "", errorsx.Wrap(err)
	}

	mkdirErr := r.Fs.MkdirAll(dir, 0755)
	if mkdirErr != nil {
		return "", errorsx.Wrap(mkdirErr, "dir", dir)
	}

	for path, data := range map[string][]byte{iconPath: icon, shadowPath: shadow} {
		writeErr := r.Fs.WriteFile(path, data, 0644)
		if writeErr != nil {
			return "", errorsx.Wrap(writeErr, "path", path)
		}
	}

	return dir, nil
}

// shade changes the lightness of a CSS colour, returning it as hex
func shade(cssColor string, deltaLightness float64) (string, errorsx.Error) {
	c, err := csscolorparser.Parse(cssColor)
	if err != nil {
		return "", errorsx.Wrap(err, "color", cssColor)
	}

	h, s, l := colorful.Color{R: c.R, G: c.G, B: c.B}.Hsl()
	return colorful.Hsl(h, s, l+deltaLightness).Clamped().Hex(), nil
}

// DrawMarkerIcon draws a 25x41 pin whose tip is at the bottom centre, as a PNG
func DrawMarkerIcon(cssColor string) ([]byte, errorsx.Error) {
	outline, err := shade(cssColor, -0.15)
	if err != nil {
		return nil, err
	}
	highlight, err := shade(cssColor, 0.12)
	if err != nil {
		return nil, err
	}

	canvas, err := rasterengine.NewCanvas(25, 41)
	if err != nil {
		return nil, err
	}
	ctx, err := canvas.GetContext("2d")
	if err != nil {
		return nil, err
	}

	const cx, cy, radius = 12.5, 12.5, 11.5

	// head and tail as one outline
	tailAngle := math.Acos(radius / (40 - cy))
	ctx.BeginPath()
	ctx.Arc(cx, cy, radius, math.Pi/2+tailAngle, math.Pi/2-tailAngle, false)
	ctx.LineTo(cx, 40)
	ctx.ClosePath()

	err = ctx.SetFillStyle(cssColor)
	if err != nil {
		return nil, err
	}
	ctx.Fill()

	err = ctx.SetStrokeStyle(outline)
	if err != nil {
		return nil, err
	}
	ctx.SetLineWidth(1)
	ctx.Stroke()

	// lighter upper half of the head
	ctx.BeginPath()
	ctx.Arc(cx, cy, radius-2, math.Pi, 2*math.Pi, false)
	ctx.ClosePath()
	err = ctx.SetFillStyle(highlight)
	if err != nil {
		return nil, err
	}
	ctx.SetGlobalAlpha(0.5)
	ctx.Fill()
	ctx.SetGlobalAlpha(1)

	ctx.BeginPath()
	ctx.Arc(cx, cy, 4.5, 0, 2*math.Pi, false)
	ctx.ClosePath()
	err = ctx.SetFillStyle("#ffffff")
	if err != nil {
		return nil, err
	}
	ctx.Fill()

	return canvas.ToBuffer(rasterengine.FormatPNG, 0)
}

// DrawMarkerShadow draws the 41x41 shadow of the marker icon, as a PNG
func DrawMarkerShadow() ([]byte, errorsx.Error) {
	canvas, err := rasterengine.NewCanvas(41, 41)
	if err != nil {
		return nil, err
	}
	ctx, err := canvas.GetContext("2d")
	if err != nil {
		return nil, err
	}

	ctx.BeginPath()
	ctx.Ellipse(21, 34, 15, 6)
	ctx.ClosePath()
	err = ctx.SetFillStyle("rgba(0, 0, 0, 0.3)")
	if err != nil {
		return nil, err
	}
	ctx.Fill()

	return canvas.ToBuffer(rasterengine.FormatPNG, 0)
}

// fileURL turns an absolute directory into a file:// URL ending in a slash
func fileURL(dir string) string {
	dir = filepath.ToSlash(dir)
	if len(dir) > 0 && dir[len(dir)-1] != '/' {
		dir += "/"
	}
	if len(dir) > 0 && dir[0] != '/' {
		dir = "/" + dir
	}

	return "file://" + dir
}

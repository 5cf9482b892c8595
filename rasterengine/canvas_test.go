package rasterengine

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"strings"
	"testing"

	snapshot "github.com/jamesrr39/go-snapshot-testing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCanvas(t *testing.T) {
	type testType struct {
		Name          string
		Width, Height int
		ExpectError   bool
	}

	tests := []testType{
		{"normal", 256, 256, false},
		{"empty", 0, 0, false},
		{"negative width", -1, 10, true},
		{"too tall", 10, MaxDimension + 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			canvas, err := NewCanvas(tc.Width, tc.Height)
			if tc.ExpectError {
				require.Error(t, err)
				assert.Equal(t, ErrContextUnavailable, errorsx.Cause(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.Width, canvas.Width())
			assert.Equal(t, tc.Height, canvas.Height())
		})
	}
}

func TestCanvas_GetContext(t *testing.T) {
	canvas, err := NewCanvas(10, 10)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)
	assert.Same(t, canvas, ctx.Canvas())

	_, err = canvas.GetContext("webgl")
	require.Error(t, err)
	assert.Equal(t, ErrContextUnavailable, errorsx.Cause(err))
}

func TestCanvas_Resize(t *testing.T) {
	canvas, err := NewCanvas(4, 4)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)
	require.NoError(t, ctx.SetFillStyle("red"))
	ctx.FillRect(0, 0, 4, 4)

	err = canvas.Resize(8, 2)
	require.NoError(t, err)
	assert.Equal(t, 8, canvas.Width())
	assert.Equal(t, 2, canvas.Height())

	// resizing clears the bitmap and the drawing state
	assert.Equal(t, color.RGBA{}, canvas.Image().RGBAAt(1, 1))
	ctx, err = canvas.GetContext("2d")
	require.NoError(t, err)
	assert.Equal(t, "#000000", ctx.FillStyle())
}

func TestCanvas_DrawImage(t *testing.T) {
	canvas, err := NewCanvas(4, 2)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	ctx.DrawImage(NewImageWithBackground(image.Rect(0, 0, 4, 2), color.RGBA{B: 0xff, A: 0xff}), 0, 0)

	snapshot.AssertMatchesSnapshot(t, "TestCanvas_DrawImage_1", snapshot.NewImageSnapshot(canvas.Image()))
}

func TestContext2D_FillRect(t *testing.T) {
	canvas, err := NewCanvas(10, 10)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	require.NoError(t, ctx.SetFillStyle("#ff0000"))
	ctx.Translate(2, 2)
	ctx.FillRect(0, 0, 4, 4)

	img := canvas.Image()
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.RGBAAt(3, 3))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(8, 8))
}

func TestContext2D_ClearRect(t *testing.T) {
	canvas, err := NewCanvas(10, 10)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	ctx.DrawImage(NewImageWithBackground(image.Rect(0, 0, 10, 10), color.White), 0, 0)
	ctx.ClearRect(0, 0, 5, 10)

	img := canvas.Image()
	assert.Equal(t, color.RGBA{}, img.RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{0xff, 0xff, 0xff, 0xff}, img.RGBAAt(7, 2))
}

func TestContext2D_globalAlpha(t *testing.T) {
	canvas, err := NewCanvas(2, 2)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	ctx.SetGlobalAlpha(0.5)
	ctx.SetGlobalAlpha(3)
	assert.Equal(t, 0.5, ctx.GlobalAlpha())

	ctx.DrawImage(NewImageWithBackground(image.Rect(0, 0, 2, 2), color.Black), 0, 0)

	alpha := canvas.Image().RGBAAt(0, 0).A
	assert.InDelta(t, 0x80, int(alpha), 1)
}

func TestContext2D_SaveRestore(t *testing.T) {
	canvas, err := NewCanvas(2, 2)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	require.NoError(t, ctx.SetStrokeStyle("blue"))
	ctx.Save()
	require.NoError(t, ctx.SetStrokeStyle("green"))
	ctx.SetLineWidth(4)
	ctx.Restore()

	assert.Equal(t, "blue", ctx.StrokeStyle())
	assert.Equal(t, float64(1), ctx.LineWidth())

	// unbalanced restore is ignored
	ctx.Restore()
	assert.Equal(t, "blue", ctx.StrokeStyle())
}

func TestContext2D_SetFillStyle_invalid(t *testing.T) {
	canvas, err := NewCanvas(2, 2)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	err = ctx.SetFillStyle("not a colour")
	require.Error(t, err)
	assert.Equal(t, "#000000", ctx.FillStyle())
}

func TestContext2D_Arc(t *testing.T) {
	canvas, err := NewCanvas(20, 20)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	require.NoError(t, ctx.SetFillStyle("rgb(0, 255, 0)"))
	ctx.BeginPath()
	ctx.Arc(10, 10, 5, 0, 2*math.Pi, false)
	ctx.Fill()

	img := canvas.Image()
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, img.RGBAAt(10, 10))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(1, 1))
}

func Test_arcSweep(t *testing.T) {
	assert.InDelta(t, math.Pi, arcSweep(0, math.Pi, false), 1e-9)
	assert.InDelta(t, 2*math.Pi, arcSweep(0, 4*math.Pi, false), 1e-9)
	assert.InDelta(t, 1.5*math.Pi, arcSweep(math.Pi, math.Pi/2, false), 1e-9)
	assert.InDelta(t, -math.Pi/2, arcSweep(math.Pi, math.Pi/2, true), 1e-9)
	assert.InDelta(t, -2*math.Pi, arcSweep(0, -7, true), 1e-9)
}

func TestParseFont(t *testing.T) {
	size, stack := ParseFont(`bold 13px "Helvetica Neue", Arial, sans-serif`)
	assert.Equal(t, float64(13), size)
	assert.Equal(t, `"Helvetica Neue", Arial, sans-serif`, stack)

	size, stack = ParseFont("12.5px/1.4 Go")
	assert.Equal(t, 12.5, size)
	assert.Equal(t, "Go", stack)

	size, stack = ParseFont("nonsense")
	assert.Equal(t, float64(10), size)
	assert.Equal(t, "sans-serif", stack)
}

func TestContext2D_Text(t *testing.T) {
	canvas, err := NewCanvas(100, 30)
	require.NoError(t, err)

	ctx, err := canvas.GetContext("2d")
	require.NoError(t, err)

	ctx.SetFont("14px sans-serif")
	short := ctx.MeasureText("a")
	long := ctx.MeasureText("a longer line")
	assert.True(t, short.Width > 0)
	assert.True(t, long.Width > short.Width)
	assert.True(t, long.Ascent > 0)

	err = ctx.FillText("Hello", 5, 20)
	require.NoError(t, err)

	drawn := false
	img := canvas.Image()
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			drawn = true
			break
		}
	}
	assert.True(t, drawn)
}

func TestCanvas_ToBuffer(t *testing.T) {
	canvas, err := NewCanvas(8, 8)
	require.NoError(t, err)

	pngBytes, err := canvas.ToBuffer(FormatPNG, 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pngBytes, []byte("\x89PNG\r\n\x1a\n")))
	_, decodeErr := png.Decode(bytes.NewReader(pngBytes))
	require.NoError(t, decodeErr)

	jpegBytes, err := canvas.ToBuffer(FormatJPEG, 50)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, jpegBytes[:2])
	_, decodeErr = jpeg.Decode(bytes.NewReader(jpegBytes))
	require.NoError(t, decodeErr)
}

func TestCanvas_ToDataURL(t *testing.T) {
	canvas, err := NewCanvas(3, 5)
	require.NoError(t, err)

	dataURL, err := canvas.ToDataURL("")
	require.NoError(t, err)

	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(dataURL, prefix))

	data, decodeErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	require.NoError(t, decodeErr)

	img, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width())
	assert.Equal(t, 5, img.Height())
	assert.Equal(t, "png", img.Format)
}

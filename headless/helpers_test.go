package headless

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/jamesrr39/goutil/gofs/mockfs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/stretchr/testify/require"
)

type testEnvironment struct {
	*Environment
	fs   mockfs.MockFs
	logs *bytes.Buffer
}

// newTestEnvironment initializes a fresh environment over an in-memory filesystem,
// with the default marker images generated under /icons
func newTestEnvironment(t *testing.T, modifyOptions func(options *Options)) *testEnvironment {
	ResetForTests()
	t.Cleanup(ResetForTests)

	fs := mockfs.NewMockFs()
	logs := new(bytes.Buffer)

	options := DefaultOptions()
	options.Logger = logpkg.NewLogger(logs, logpkg.LogLevelWarn)
	options.Fs = fs
	options.ModuleResolver = GeneratedIconsResolver{Fs: fs, Dir: "/icons"}
	options.Loader.RetryMax = 0
	if modifyOptions != nil {
		modifyOptions(&options)
	}

	env, err := Initialize(options)
	require.NoError(t, err)

	return &testEnvironment{env, fs, logs}
}

func (env *testEnvironment) runUntilIdle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, env.Loop.RunUntilIdle(ctx))
}

// writePNG writes a solid colour PNG to the in-memory filesystem
func (env *testEnvironment) writePNG(t *testing.T, path string, width, height int, c color.Color) {
	require.NoError(t, env.fs.WriteFile(path, solidPNG(t, width, height, c), 0644))
}

func solidPNG(t *testing.T, width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	data, err := rasterengine.EncodeToBytes(img, rasterengine.FormatPNG, 0)
	require.NoError(t, err)

	return data
}

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
)

package slippymap

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	lib      *Library
	doc      *dom.Document
	loop     *envshim.Loop
	canvases map[*dom.Element]*rasterengine.Canvas
	// srcs records every image src assignment, in order
	srcs []string
}

func (env *testEnv) GetContext(el *dom.Element, contextType string) (*rasterengine.Context2D, errorsx.Error) {
	canvas, ok := env.canvases[el]
	if !ok {
		return nil, errorsx.Wrap(rasterengine.ErrContextUnavailable)
	}

	return canvas.GetContext(contextType)
}

type noopTargetAdapter struct{}

func (noopTargetAdapter) AddEventListener(target interface{}, eventType string, listener dom.EventListener) dom.ListenerID {
	return 0
}

func (noopTargetAdapter) RemoveEventListener(target interface{}, eventType string, id dom.ListenerID) {
}

// newTestEnv builds a library over a document whose canvases are backed by raster canvases and whose
// images "load" on the next loop turn, failing when the src contains "missing"
func newTestEnv(t *testing.T, withCanvasAdapter bool) *testEnv {
	doc := dom.NewDocument()
	loop := envshim.NewLoop()

	env := &testEnv{
		doc:      doc,
		loop:     loop,
		canvases: make(map[*dom.Element]*rasterengine.Canvas),
	}

	doc.SetContextProvider(env)
	doc.RegisterHooks("canvas", dom.ElementHooks{
		Created: func(el *dom.Element) errorsx.Error {
			canvas, err := rasterengine.NewCanvas(300, 150)
			if err != nil {
				return err
			}
			env.canvases[el] = canvas
			return nil
		},
		AttributeChanged: func(el *dom.Element, name, value string) {
			canvas := env.canvases[el]
			width, height := canvas.Width(), canvas.Height()
			switch name {
			case "width":
				width, _ = el.WidthAttribute()
			case "height":
				height, _ = el.HeightAttribute()
			default:
				return
			}
			err := canvas.Resize(width, height)
			require.NoError(t, err)
		},
	})
	doc.RegisterHooks("img", dom.ElementHooks{
		AttributeChanged: func(el *dom.Element, name, value string) {
			if name != "src" {
				return
			}
			env.srcs = append(env.srcs, value)
			loop.Post(func() {
				if el.Src() != value {
					return
				}
				if strings.Contains(value, "missing") {
					event := dom.NewEvent("error", false)
					event.Detail = errors.New("not found: " + value)
					el.DispatchEvent(event)
					return
				}
				el.DispatchEvent(dom.NewEvent("load", false))
			})
		},
	})

	lib := NewLibrary(logpkg.NewLogger(new(bytes.Buffer), logpkg.LogLevelError), doc, envshim.NewGlobals(loop))
	lib.MapDefaults.FadeAnimation = false
	lib.MapDefaults.ZoomAnimation = false
	lib.MapDefaults.MarkerZoomAnimation = false
	lib.MapDefaults.PreferCanvas = true
	if withCanvasAdapter {
		lib.DomEvent.RegisterTargetAdapter(reflectTypeOfCanvas, noopTargetAdapter{})
	}
	env.lib = lib

	return env
}

// newTestMap creates a map of a fixed size in the document body
func (env *testEnv) newTestMap(t *testing.T, width, height float64, view *View) *Map {
	options := env.lib.MapDefaults
	options.Sizer = SizerFunc(func(m *Map) Point {
		return Point{width, height}
	})
	options.View = view

	m, err := env.lib.NewMapInBody(options)
	require.NoError(t, err)

	return m
}

func (env *testEnv) runUntilIdle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := env.loop.RunUntilIdle(ctx)
	require.NoError(t, err)
}

var reflectTypeOfCanvas = reflect.TypeOf(&rasterengine.Canvas{})

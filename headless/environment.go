// Package headless runs the slippy map library without a browser. It builds one synthetic
// environment per process: a DOM whose canvases are backed by the raster engine, image elements
// that load through the resource loader, and map defaults suited to exporting images.
package headless

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/compositor"
	"github.com/jamesrr39/headlessmap/dom"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/eventcompat"
	"github.com/jamesrr39/headlessmap/fonts"
	"github.com/jamesrr39/headlessmap/resourceloader"
	"github.com/jamesrr39/headlessmap/slippymap"
)

type Options struct {
	// Document is used as-is when given, instead of a new empty document
	Document *dom.Document
	Logger   *logpkg.Logger
	Fs       gofs.Fs
	Loader   resourceloader.Options
	// ModuleResolver locates the default marker images
	ModuleResolver ModuleResolver
	// DefaultSize is the size of maps that have not been given one
	DefaultSize      slippymap.Point
	ImageLoadTimeout time.Duration
	// FontPath overrides font discovery, see fonts.Registry.SetFontPath
	FontPath string
}

func DefaultOptions() Options {
	fs := gofs.NewOsFs()

	return Options{
		Logger: logpkg.NewLogger(os.Stderr, logpkg.LogLevelInfo),
		Fs:     fs,
		Loader: resourceloader.DefaultOptions(),
		ModuleResolver: GeneratedIconsResolver{
			Fs:  fs,
			Dir: filepath.Join(os.TempDir(), "headlessmap", "images"),
		},
		DefaultSize:      slippymap.Point{X: 800, Y: 600},
		ImageLoadTimeout: DefaultImageLoadTimeout,
	}
}

// Environment is the headless environment. There is at most one per process, see Initialize.
type Environment struct {
	Logger   *logpkg.Logger
	Fs       gofs.Fs
	Document *dom.Document
	Loop     *envshim.Loop
	Globals  *envshim.Globals
	Loader   *resourceloader.Loader
	Fonts    *fonts.Registry
	Backings *BackingTable
	Images   *SyntheticImages
	Library  *slippymap.Library

	defaultSize slippymap.Point
	compositor  *compositor.Compositor
}

var (
	environmentMu sync.Mutex
	environment   *Environment
)

// Initialize builds the process's environment. Once built, later calls return it and ignore their options.
func Initialize(options Options) (*Environment, errorsx.Error) {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	if environment != nil {
		return environment, nil
	}

	env, err := newEnvironment(options)
	if err != nil {
		return nil, err
	}

	environment = env

	return env, nil
}

// ResetForTests forgets the process's environment, so the next Initialize builds a new one
func ResetForTests() {
	environmentMu.Lock()
	defer environmentMu.Unlock()

	environment = nil
	envshim.ResetForTests()
	eventcompat.ResetForTests()
}

func newEnvironment(options Options) (*Environment, errorsx.Error) {
	defaults := DefaultOptions()
	if options.Logger == nil {
		options.Logger = defaults.Logger
	}
	if options.Fs == nil {
		options.Fs = defaults.Fs
	}
	if options.ModuleResolver == nil {
		options.ModuleResolver = GeneratedIconsResolver{Fs: options.Fs, Dir: defaults.ModuleResolver.(GeneratedIconsResolver).Dir}
	}
	if options.DefaultSize.IsZero() {
		options.DefaultSize = defaults.DefaultSize
	}

	logger := options.Logger

	doc := options.Document
	if doc == nil {
		doc = dom.NewDocument()
	} else {
		logger.Debug("reusing the supplied document")
	}

	loop := envshim.NewLoop()
	globals := envshim.NewGlobals(loop)

	// the loader refuses to start without the stream polyfill
	envshim.ApplyPolyfills(globals)

	loader, err := resourceloader.NewLoader(logger, globals, options.Fs, options.Loader)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	fontRegistry := fonts.NewRegistry(logger, options.Fs)
	if options.FontPath != "" {
		fontRegistry.SetFontPath(options.FontPath)
	}
	fontRegistry.EnsureInitialized()

	backings := NewBackingTable()
	doc.SetContextProvider(backings)
	installCanvasHooks(logger, doc, backings, fontRegistry)

	images := newSyntheticImages(logger, globals, loader, backings, options.ImageLoadTimeout)
	images.install(doc)

	lib := slippymap.NewLibrary(logger, doc, globals)
	lib.MapDefaults.FadeAnimation = false
	lib.MapDefaults.ZoomAnimation = false
	lib.MapDefaults.MarkerZoomAnimation = false
	lib.MapDefaults.PreferCanvas = true

	err = eventcompat.PatchEventCompatibility(lib)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	imageDir, err := options.ModuleResolver.ResolveImageDir()
	if err != nil {
		// markers still work with a custom icon
		logger.Warn("couldn't locate the default marker images: %s", err.Error())
	} else {
		lib.IconDefaultImagePath = fileURL(imageDir)
	}

	return &Environment{
		Logger:      logger,
		Fs:          options.Fs,
		Document:    doc,
		Loop:        loop,
		Globals:     globals,
		Loader:      loader,
		Fonts:       fontRegistry,
		Backings:    backings,
		Images:      images,
		Library:     lib,
		defaultSize: options.DefaultSize,
		compositor:  compositor.NewCompositor(logger, backings, fontRegistry),
	}, nil
}

// NewImage creates an img element that loads when its src is set
func (env *Environment) NewImage() (*dom.Element, errorsx.Error) {
	return env.Document.CreateElement("img")
}

// NewCanvas creates a canvas element backed by a raster canvas
func (env *Environment) NewCanvas(width, height int) (*dom.Element, errorsx.Error) {
	el, err := env.Document.CreateElement("canvas")
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	el.SetWidth(width)
	el.SetHeight(height)

	return el, nil
}

func (env *Environment) Compositor() *compositor.Compositor {
	return env.compositor
}

func (env *Environment) DefaultSize() slippymap.Point {
	return env.defaultSize
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/goutil/open"
	"github.com/jamesrr39/headlessmap/appconfig"
	"github.com/jamesrr39/headlessmap/headless"
	"github.com/jamesrr39/headlessmap/maprenderer"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/jamesrr39/headlessmap/webservices"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/pkg/profile"
)

var (
	logger     *logpkg.Logger
	verbose    = kingpin.Flag("v", "verbose logging").Bool()
	configPath = kingpin.Flag("config", "path to a TOML config file").String()
)

func main() {
	setupServe()
	setupRender()

	kingpin.Parse()
}

func setupLogger() {
	logLevel := logpkg.LogLevelInfo
	if *verbose {
		logLevel = logpkg.LogLevelDebug
	}
	logger = logpkg.NewLogger(os.Stderr, logLevel)
}

func loadConfig(fs gofs.Fs) (appconfig.Config, errorsx.Error) {
	if *configPath == "" {
		return appconfig.DefaultConfig(), nil
	}

	return appconfig.LoadFile(fs, *configPath)
}

// environmentFromConfig initializes the headless environment. The returned func closes the tile cache.
func environmentFromConfig(fs gofs.Fs, config appconfig.Config) (*headless.Environment, appconfig.Paths, appconfig.CloseFunc, errorsx.Error) {
	paths, err := config.EnsurePaths(fs)
	if err != nil {
		return nil, paths, nil, errorsx.Wrap(err)
	}

	cache, closeCache, err := config.OpenCache()
	if err != nil {
		return nil, paths, nil, errorsx.Wrap(err)
	}

	env, err := headless.Initialize(config.HeadlessOptions(logger, fs, paths, cache))
	if err != nil {
		closeCache()
		return nil, paths, nil, errorsx.Wrap(err)
	}

	logger.Debug("font families available: %v", env.Fonts.Families())

	return env, paths, closeCache, nil
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	appconfig.DefaultPort, appconfig.DefaultPort, appconfig.DefaultPort, appconfig.DefaultPort,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve rendered maps over HTTP")
	addr := cmd.Flag("addr", addrHelp).String()
	shouldProfile := cmd.Flag("profile", "profile the request performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		setupLogger()

		run := func() errorsx.Error {
			fs := gofs.NewOsFs()

			config, err := loadConfig(fs)
			if err != nil {
				return errorsx.Wrap(err)
			}

			if *addr != "" {
				config.Addr = *addr
			}

			env, paths, closeCache, err := environmentFromConfig(fs, config)
			if err != nil {
				return errorsx.Wrap(err)
			}
			defer closeCache()

			router, err := createServer(env, config, paths, *shouldProfile)
			if err != nil {
				return errorsx.Wrap(err)
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = config.Addr
			server.Handler = router

			logger.Info("about to start serving on %q", config.Addr)

			listenErr := server.ListenAndServe()
			if listenErr != nil {
				return errorsx.Wrap(listenErr)
			}
			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

func setupRender() {
	cmd := kingpin.Command("render", "render a map to an image file")
	outputPath := cmd.Arg("output", "file to write. The format is chosen from the extension (.png, .jpg, .jpeg)").Required().String()
	lat := cmd.Flag("lat", "latitude of the center").Required().Float64()
	lon := cmd.Flag("lon", "longitude of the center").Required().Float64()
	zoom := cmd.Flag("zoom", "zoom level (defaults to the config's render zoom)").Float64()
	width := cmd.Flag("width", "image width in pixels (defaults to the config's render width)").Int()
	height := cmd.Flag("height", "image height in pixels (defaults to the config's render height)").Int()
	quality := cmd.Flag("quality", "JPEG quality, 1-100").Int()
	tiles := cmd.Flag("tiles", "tile URL template, e.g. https://tile.example.org/{z}/{x}/{y}.png").String()
	marker := cmd.Flag("marker", "place a marker at the center").Bool()
	popup := cmd.Flag("popup", "open a popup with this HTML content at the center").String()
	openAfter := cmd.Flag("open", "open the image once it has been written").Bool()
	shouldProfile := cmd.Flag("profile", "profile the render performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) (err error) {
		defer func() {
			errorx, ok := err.(errorsx.Error)
			if ok {
				log.Printf("%s\n%s\n", errorx.Error(), errorx.Stack())
			}
		}()

		setupLogger()

		fs := gofs.NewOsFs()

		config, err := loadConfig(fs)
		if err != nil {
			return errorsx.Wrap(err)
		}

		if *shouldProfile {
			defer profile.Start(profile.CPUProfile).Stop()
		}

		request := maprenderer.Request{
			Center:  slippymap.LatLng{Lat: *lat, Lng: *lon},
			Zoom:    config.Render.Zoom,
			Width:   config.Render.Width,
			Height:  config.Render.Height,
			Format:  rasterengine.FormatFromFilename(*outputPath),
			Quality: *quality,
			TileURL: config.Render.TileURL,
			Marker:  *marker,
			Popup:   *popup,
		}
		if *zoom != 0 {
			request.Zoom = *zoom
		}
		if *width != 0 {
			request.Width = *width
		}
		if *height != 0 {
			request.Height = *height
		}
		if *tiles != "" {
			request.TileURL = *tiles
		}

		env, _, closeCache, err := environmentFromConfig(fs, config)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer closeCache()

		startTime := time.Now()

		renderer := maprenderer.NewRenderer(env, config.RenderTimeout.Duration)
		data, err := renderer.Render(context.Background(), request)
		if err != nil {
			return errorsx.Wrap(err)
		}

		err = fs.WriteFile(*outputPath, data, 0644)
		if err != nil {
			return errorsx.Wrap(err, "outputPath", *outputPath)
		}

		logger.Info("wrote %q (%d bytes) in %s", *outputPath, len(data), time.Since(startTime))

		if *openAfter {
			absPath, err := filepath.Abs(*outputPath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			err = open.OpenURL("file://" + absPath)
			if err != nil {
				return errorsx.Wrap(err)
			}
		}

		return nil
	})
}

func createServer(env *headless.Environment, config appconfig.Config, paths appconfig.Paths, shouldProfile bool) (chi.Router, errorsx.Error) {
	traceFilePath := filepath.Join(paths.TraceDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := env.Fs.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	renderer := maprenderer.NewRenderer(env, config.RenderTimeout.Duration)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, env.Fonts, config.Render))
		r.Mount("/render", webservices.NewRenderService(logger, renderer, config.Render, shouldProfile))
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router, nil
}

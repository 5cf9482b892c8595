package webservices

import (
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/maprenderer"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/slippymap"
	"github.com/pkg/profile"
)

// RenderDefaults fill in what a render request leaves out
type RenderDefaults struct {
	TileURL string  `json:"tileUrl" toml:"tile_url"`
	Width   int     `json:"width" toml:"width"`
	Height  int     `json:"height" toml:"height"`
	Zoom    float64 `json:"zoom" toml:"zoom"`
}

func DefaultRenderDefaults() RenderDefaults {
	return RenderDefaults{
		Width:  800,
		Height: 600,
		Zoom:   1,
	}
}

type RenderService struct {
	logger        *logpkg.Logger
	renderer      maprenderer.MapRenderer
	defaults      RenderDefaults
	shouldProfile bool
	chi.Router
}

func NewRenderService(logger *logpkg.Logger, renderer maprenderer.MapRenderer, defaults RenderDefaults, shouldProfile bool) *RenderService {
	rs := &RenderService{logger, renderer, defaults, shouldProfile, chi.NewRouter()}

	rs.Get("/", rs.handleRender)
	rs.Get("/tile", rs.handleGetTileAt)
	rs.Get("/tile/{z}/{x}/{y}", rs.handleGetTile)

	return rs
}

func (rs *RenderService) handleRender(w http.ResponseWriter, r *http.Request) {
	if rs.shouldProfile {
		defer profile.Start().Stop()
	}

	request, err := rs.parseRequest(r.URL.Query())
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	rs.serve(w, r, request)
}

func (rs *RenderService) handleGetTile(w http.ResponseWriter, r *http.Request) {
	if rs.shouldProfile {
		defer profile.Start().Stop()
	}

	x := chi.URLParam(r, "x")
	y := chi.URLParam(r, "y")
	zStr := chi.URLParam(r, "z")

	ints, err := stringsToInts(x, y, zStr)
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}

	z := ints[2]
	if z < 0 || z > 30 || ints[0] < 0 || ints[1] < 0 || ints[0] >= 1<<z || ints[1] >= 1<<z {
		errorsx.HTTPError(w, rs.logger, errorsx.Errorf("tile out of range: z=%d x=%d y=%d", z, ints[0], ints[1]), http.StatusBadRequest)
		return
	}

	rs.logger.Debug("serving tile x, y, z: %s %s %s", x, y, zStr)

	rs.serveTile(w, r, maprenderer.TileRequest(ints[0], ints[1], z))
}

// handleGetTileAt serves the tile containing the lat/lon query point at the zoom query level
func (rs *RenderService) handleGetTileAt(w http.ResponseWriter, r *http.Request) {
	if rs.shouldProfile {
		defer profile.Start().Stop()
	}

	query := r.URL.Query()

	lat, err := strconv.ParseFloat(query.Get("lat"), 64)
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err, "param", "lat"), http.StatusBadRequest)
		return
	}

	lon, err := strconv.ParseFloat(query.Get("lon"), 64)
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err, "param", "lon"), http.StatusBadRequest)
		return
	}

	z, err := strconv.Atoi(query.Get("zoom"))
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err, "param", "zoom"), http.StatusBadRequest)
		return
	}

	if z < 0 || z > 30 {
		errorsx.HTTPError(w, rs.logger, errorsx.Errorf("zoom out of range: %d", z), http.StatusBadRequest)
		return
	}

	rs.serveTile(w, r, maprenderer.TileRequestAt(slippymap.LatLng{Lat: lat, Lng: lon}, z))
}

// serveTile applies the tiles and format query parameters to a tile request and serves it
func (rs *RenderService) serveTile(w http.ResponseWriter, r *http.Request, request maprenderer.Request) {
	request.TileURL = rs.defaults.TileURL

	query := r.URL.Query()
	if tileURL := query.Get("tiles"); tileURL != "" {
		request.TileURL = tileURL
	}

	format, err := rasterengine.ParseFormat(query.Get("format"))
	if err != nil {
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err), http.StatusBadRequest)
		return
	}
	request.Format = format

	rs.serve(w, r, request)
}

func (rs *RenderService) serve(w http.ResponseWriter, r *http.Request, request maprenderer.Request) {
	data, err := rs.renderer.Render(r.Context(), request)
	if err != nil {
		code := http.StatusInternalServerError
		if _, ok := errorsx.Cause(err).(*maprenderer.InvalidRequestError); ok {
			code = http.StatusBadRequest
		}
		errorsx.HTTPError(w, rs.logger, errorsx.Wrap(err), code)
		return
	}

	w.Header().Set("Content-Type", request.Format.MimeType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	_, writeErr := w.Write(data)
	if writeErr != nil {
		switch writeErr.(type) {
		case *net.OpError:
			// broken pipe (request cancelled). Do nothing
		default:
			rs.logger.Error("couldn't write image: %s", writeErr)
		}
		return
	}
}

func (rs *RenderService) parseRequest(query url.Values) (maprenderer.Request, errorsx.Error) {
	request := maprenderer.Request{
		Zoom:    rs.defaults.Zoom,
		Width:   rs.defaults.Width,
		Height:  rs.defaults.Height,
		TileURL: rs.defaults.TileURL,
		Popup:   query.Get("popup"),
	}

	floatParams := []struct {
		Name     string
		Target   *float64
		Required bool
	}{
		{"lat", &request.Center.Lat, true},
		{"lon", &request.Center.Lng, true},
		{"zoom", &request.Zoom, false},
	}

	for _, param := range floatParams {
		value := query.Get(param.Name)
		if value == "" {
			if param.Required {
				return request, errorsx.Errorf("missing query parameter %q", param.Name)
			}
			continue
		}

		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return request, errorsx.Wrap(err, "param", param.Name)
		}
		*param.Target = f
	}

	intParams := []struct {
		Name   string
		Target *int
	}{
		{"width", &request.Width},
		{"height", &request.Height},
		{"quality", &request.Quality},
	}

	for _, param := range intParams {
		value := query.Get(param.Name)
		if value == "" {
			continue
		}

		i, err := strconv.Atoi(value)
		if err != nil {
			return request, errorsx.Wrap(err, "param", param.Name)
		}
		*param.Target = i
	}

	format, err := rasterengine.ParseFormat(query.Get("format"))
	if err != nil {
		return request, errorsx.Wrap(err)
	}
	request.Format = format

	if tileURL := query.Get("tiles"); tileURL != "" {
		request.TileURL = tileURL
	}

	if marker := query.Get("marker"); marker != "" {
		var parseErr error
		request.Marker, parseErr = strconv.ParseBool(marker)
		if parseErr != nil {
			return request, errorsx.Wrap(parseErr, "param", "marker")
		}
	}

	return request, nil
}

func stringsToInts(s ...string) ([]int, error) {
	var ints []int
	for _, str := range s {
		i, err := strconv.Atoi(str)
		if err != nil {
			return nil, err
		}
		ints = append(ints, i)
	}

	return ints, nil
}

package webservices

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/maprenderer"
	"github.com/jamesrr39/headlessmap/rasterengine"
)

// FontLister lists the font families available for text rendering
type FontLister interface {
	Families() []string
}

func NewInfoService(logger *logpkg.Logger, fonts FontLister, defaults RenderDefaults) *InfoService {
	ws := &InfoService{logger, fonts, defaults, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger   *logpkg.Logger
	fonts    FontLister
	defaults RenderDefaults
	chi.Router
}

type limitsType struct {
	MaxWidth  int `json:"maxWidth"`
	MaxHeight int `json:"maxHeight"`
}

type infoType struct {
	Defaults     RenderDefaults        `json:"defaults"`
	Limits       limitsType            `json:"limits"`
	Formats      []rasterengine.Format `json:"formats"`
	FontFamilies []string              `json:"fontFamilies"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	families := append([]string{}, ws.fonts.Families()...)

	// make deterministic
	sort.Strings(families)

	render.JSON(w, r, infoType{
		Defaults:     ws.defaults,
		Limits:       limitsType{maprenderer.MaxDimension, maprenderer.MaxDimension},
		Formats:      []rasterengine.Format{rasterengine.FormatPNG, rasterengine.FormatJPEG},
		FontFamilies: families,
	})
}

package fonts

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/goutil/userextra"
	"github.com/llgcode/draw2d"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

// FontPathEnvVar overrides font discovery with a font file or a directory of font files
const FontPathEnvVar = "HEADLESSMAP_FONT_PATH"

// Source names where the registered fonts came from
type Source string

const (
	SourceNone     Source = ""
	SourceOverride Source = "override"
	SourcePackage  Source = "package"
	SourceLegacy   Source = "legacy"
	SourceBundled  Source = "bundled"
)

// bundledSearchDirs are searched, relative to the working directory, when no other source yields a font
var bundledSearchDirs = []string{
	"fonts",
	filepath.Join("assets", "fonts"),
	filepath.Join("..", "fonts"),
	filepath.Join("..", "assets", "fonts"),
}

const (
	genericSansSerif = "sans-serif"
	genericMonospace = "monospace"
)

// Registration is a (family, font path) pair registered with the raster engine
type Registration struct {
	Family string
	Path   string
}

// process-wide state: the raster engine's font cache is process-wide too
var (
	registeredMu  sync.Mutex
	registered    = make(map[Registration]bool)
	familyFonts   = make(map[string]*truetype.Font)
	isInitialized bool
	initSource    Source
)

// RegisterFont registers a font with the raster engine once per (family, path) pair.
// It returns false if the pair was already registered.
func RegisterFont(family, path string, style draw2d.FontStyle, font *truetype.Font) bool {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	return registerFontLocked(family, path, style, font)
}

func registerFontLocked(family, path string, style draw2d.FontStyle, font *truetype.Font) bool {
	key := Registration{family, path}
	if registered[key] {
		return false
	}
	registered[key] = true

	draw2d.RegisterFont(draw2d.FontData{
		Name:   family,
		Family: draw2d.FontFamilySans,
		Style:  style,
	}, font)

	familyKey := strings.ToLower(family)
	if _, ok := familyFonts[familyKey]; !ok || style == draw2d.FontStyleNormal {
		familyFonts[familyKey] = font
	}

	return true
}

// Registrations returns the registered (family, path) pairs, sorted
func Registrations() []Registration {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	var keys []Registration
	for key := range registered {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(a, b int) bool {
		if keys[a].Family != keys[b].Family {
			return keys[a].Family < keys[b].Family
		}
		return keys[a].Path < keys[b].Path
	})

	return keys
}

// ResetForTests forgets every registration and the "already initialized" flag
func ResetForTests() {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	registered = make(map[Registration]bool)
	familyFonts = make(map[string]*truetype.Font)
	isInitialized = false
	initSource = SourceNone
}

type packagedFont struct {
	Family string
	Name   string
	Style  draw2d.FontStyle
	TTF    []byte
}

var packagedFonts = []packagedFont{
	{"Go", "goregular", draw2d.FontStyleNormal, goregular.TTF},
	{"Go", "gobold", draw2d.FontStyleBold, gobold.TTF},
	{"Go", "goitalic", draw2d.FontStyleItalic, goitalic.TTF},
	{"Go", "gobolditalic", draw2d.FontStyleBold | draw2d.FontStyleItalic, gobolditalic.TTF},
	{"Go Mono", "gomono", draw2d.FontStyleNormal, gomono.TTF},
}

// Registry discovers fonts and resolves CSS font stacks to font faces.
type Registry struct {
	logger       *logpkg.Logger
	fs           gofs.Fs
	mu           sync.Mutex
	overridePath string

	// SkipPackagedFonts disables the packaged and legacy sources, so discovery falls through to the bundled search
	SkipPackagedFonts bool
	SearchDirs        []string
}

func NewRegistry(logger *logpkg.Logger, fs gofs.Fs) *Registry {
	return &Registry{
		logger:     logger,
		fs:         fs,
		SearchDirs: bundledSearchDirs,
	}
}

// SetFontPath overrides font discovery. The path can be a font file or a directory.
// Registration happens on the next call to EnsureInitialized.
func (r *Registry) SetFontPath(path string) {
	r.mu.Lock()
	r.overridePath = path
	r.mu.Unlock()

	registeredMu.Lock()
	isInitialized = false
	registeredMu.Unlock()
}

func (r *Registry) getOverridePath() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overridePath != "" {
		return r.overridePath
	}

	return os.Getenv(FontPathEnvVar)
}

// EnsureInitialized runs font discovery once per process. Failures are logged as warnings;
// text then renders with the default font.
func (r *Registry) EnsureInitialized() Source {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	if isInitialized {
		return initSource
	}

	initSource = r.discoverLocked()
	isInitialized = true

	if initSource == SourceNone {
		r.logger.Warn("no fonts could be registered, falling back to the built-in default font")
	} else {
		r.logger.Debug("fonts registered from source %q", initSource)
	}

	// generic families always resolve
	registerFontLocked(genericSansSerif, "builtin:default", draw2d.FontStyleNormal, DefaultFont())

	return initSource
}

func (r *Registry) discoverLocked() Source {
	overridePath := r.getOverridePath()
	if overridePath != "" {
		count, err := r.registerPathLocked(overridePath)
		if err != nil {
			r.logger.Warn("could not load fonts from override path %q: %s", overridePath, err.Error())
		} else if count > 0 {
			return SourceOverride
		}
	}

	if !r.SkipPackagedFonts {
		count := 0
		for _, pf := range packagedFonts {
			font, err := freetype.ParseFont(pf.TTF)
			if err != nil {
				r.logger.Warn("could not parse packaged font %q: %s", pf.Name, err)
				continue
			}
			registerFontLocked(pf.Family, "gofont:"+pf.Name, pf.Style, font)
			count++
		}
		if count > 0 {
			if mono, ok := familyFonts[strings.ToLower("Go Mono")]; ok {
				registerFontLocked(genericMonospace, "gofont:gomono", draw2d.FontStyleNormal, mono)
			}
			return SourcePackage
		}

		if DefaultFont() != nil {
			registerFontLocked("Go", "builtin:default", draw2d.FontStyleNormal, DefaultFont())
			return SourceLegacy
		}
	}

	for _, dir := range r.SearchDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		count, err := r.registerPathLocked(absDir)
		if err != nil {
			r.logger.Debug("no bundled fonts at %q: %s", absDir, err.Error())
			continue
		}
		if count > 0 {
			return SourceBundled
		}
	}

	return SourceNone
}

func (r *Registry) registerPathLocked(path string) (int, errorsx.Error) {
	path, err := userextra.ExpandUser(path)
	if err != nil {
		return 0, errorsx.Wrap(err)
	}

	fileInfo, err := r.fs.Stat(path)
	if err != nil {
		return 0, errorsx.Wrap(err, "path", path)
	}

	if !fileInfo.IsDir() {
		err = r.registerFileLocked(path)
		if err != nil {
			return 0, errorsx.Wrap(err)
		}
		return 1, nil
	}

	dirEntries, err := r.fs.ReadDir(path)
	if err != nil {
		return 0, errorsx.Wrap(err, "path", path)
	}

	count := 0
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || !isFontFile(dirEntry.Name()) {
			continue
		}
		filePath := filepath.Join(path, dirEntry.Name())
		err = r.registerFileLocked(filePath)
		if err != nil {
			r.logger.Warn("skipping font file %q: %s", filePath, err.Error())
			continue
		}
		count++
	}

	return count, nil
}

func (r *Registry) registerFileLocked(filePath string) errorsx.Error {
	fontBytes, err := r.fs.ReadFile(filePath)
	if err != nil {
		return errorsx.Wrap(err, "path", filePath)
	}

	font, err := freetype.ParseFont(fontBytes)
	if err != nil {
		return errorsx.Wrap(err, "path", filePath)
	}

	family, style := familyFromFileName(filePath)
	registerFontLocked(family, filePath, style, font)

	return nil
}

func isFontFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttf", ".otf":
		return true
	default:
		return false
	}
}

// familyFromFileName maps "Roboto-BoldItalic.ttf" to ("Roboto", bold|italic)
func familyFromFileName(filePath string) (string, draw2d.FontStyle) {
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	family := name
	variant := ""
	if idx := strings.Index(name, "-"); idx > 0 {
		family = name[:idx]
		variant = strings.ToLower(name[idx+1:])
	}

	style := draw2d.FontStyleNormal
	if strings.Contains(variant, "bold") {
		style |= draw2d.FontStyleBold
	}
	if strings.Contains(variant, "italic") || strings.Contains(variant, "oblique") {
		style |= draw2d.FontStyleItalic
	}

	return family, style
}

// Families lists the registered family names
func (r *Registry) Families() []string {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	var families []string
	for family := range familyFonts {
		families = append(families, family)
	}
	sort.Strings(families)

	return families
}

// Resolve picks the first registered family of a CSS font stack, e.g. `"Helvetica Neue", Arial, sans-serif`
func (r *Registry) Resolve(fontStack string) *truetype.Font {
	r.EnsureInitialized()

	registeredMu.Lock()
	defer registeredMu.Unlock()

	for _, family := range ParseFontStack(fontStack) {
		font, ok := familyFonts[strings.ToLower(family)]
		if ok {
			return font
		}
	}

	return DefaultFont()
}

// Face returns a face for the resolved font at a pixel size
func (r *Registry) Face(fontStack string, sizePx float64) font.Face {
	return truetype.NewFace(r.Resolve(fontStack), &truetype.Options{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// ParseFontStack splits a CSS font-family list into family names
func ParseFontStack(fontStack string) []string {
	var families []string
	for _, fragment := range strings.Split(fontStack, ",") {
		family := strings.Trim(strings.TrimSpace(fragment), `"'`)
		if family == "" {
			continue
		}
		families = append(families, family)
	}

	return families
}

package appconfig

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/goutil/userextra"
	"github.com/jamesrr39/headlessmap/headless"
	"github.com/jamesrr39/headlessmap/tilecache"
	"github.com/jamesrr39/headlessmap/tilecache/tilecachebolt"
	"github.com/jamesrr39/headlessmap/tilecache/tilecachepostgresql"
	"github.com/jamesrr39/headlessmap/webservices"
)

const (
	DefaultPort    = 9000
	DefaultRootDir = "~/.local/share/github.com/jamesrr39/headlessmap/"
)

type CacheType string

const (
	CacheTypeNone       CacheType = "none"
	CacheTypeMemory     CacheType = "memory"
	CacheTypeBolt       CacheType = "bolt"
	CacheTypePostgresql CacheType = "postgresql"
)

// ConnectionPathSeparator separates the cache type from its path or connection string, e.g. bolt://~/tiles.db
const ConnectionPathSeparator = "://"

type CacheConnectionURL struct {
	Type           CacheType
	ConnectionPath string
}

// ParseCacheConnectionURL parses "none", "memory", "bolt://<file path>" or "postgresql://<connection string>"
func ParseCacheConnectionURL(str string) (CacheConnectionURL, errorsx.Error) {
	switch CacheType(str) {
	case CacheTypeNone, CacheTypeMemory, "":
		if str == "" {
			return CacheConnectionURL{Type: CacheTypeMemory}, nil
		}
		return CacheConnectionURL{Type: CacheType(str)}, nil
	}

	idx := strings.Index(str, ConnectionPathSeparator)
	if idx < 0 {
		return CacheConnectionURL{}, errorsx.Errorf("couldn't find connection path separator %q in cache connection URL", ConnectionPathSeparator)
	}

	conn := CacheConnectionURL{
		Type:           CacheType(str[:idx]),
		ConnectionPath: str[idx+len(ConnectionPathSeparator):],
	}

	switch conn.Type {
	case CacheTypeBolt, CacheTypePostgresql:
	default:
		return CacheConnectionURL{}, errorsx.Errorf("unrecognized cache type: %q", conn.Type)
	}

	if conn.ConnectionPath == "" {
		return CacheConnectionURL{}, errorsx.Errorf("no connection path given for %s cache", conn.Type)
	}

	return conn, nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}

	d.Duration = duration

	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Addr  string `toml:"addr"`
	Cache string `toml:"cache"`
	// ImagesDir holds marker-icon.png and marker-shadow.png. Empty means they are generated in RootDir.
	ImagesDir     string   `toml:"images_dir"`
	MarkerColor   string   `toml:"marker_color"`
	FontPath      string   `toml:"font_path"`
	RootDir       string   `toml:"root_dir"`
	RenderTimeout Duration `toml:"render_timeout"`
	UserAgent     string   `toml:"user_agent"`
	RetryMax      int      `toml:"retry_max"`

	Render webservices.RenderDefaults `toml:"render"`
}

func DefaultConfig() Config {
	return Config{
		Addr:          ":9000",
		Cache:         string(CacheTypeMemory),
		RootDir:       DefaultRootDir,
		RenderTimeout: Duration{30 * time.Second},
		UserAgent:     "headlessmap",
		RetryMax:      2,
		Render:        webservices.DefaultRenderDefaults(),
	}
}

// LoadFile reads a TOML config file over the defaults. Unknown keys are an error.
func LoadFile(fs gofs.Fs, filePath string) (Config, errorsx.Error) {
	config := DefaultConfig()

	data, err := fs.ReadFile(filePath)
	if err != nil {
		return config, errorsx.Wrap(err, "filePath", filePath)
	}

	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return config, errorsx.Wrap(err, "filePath", filePath)
	}

	undecoded := md.Undecoded()
	if len(undecoded) != 0 {
		var keys []string
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return config, errorsx.Errorf("unknown config keys in %q: %s", filePath, strings.Join(keys, ", "))
	}

	_, validateErr := ParseCacheConnectionURL(config.Cache)
	if validateErr != nil {
		return config, errorsx.Wrap(validateErr, "filePath", filePath)
	}

	return config, nil
}

type Paths struct {
	ImagesDir string
	TraceDir  string
}

// EnsurePaths expands and creates the directories the server writes to
func (c Config) EnsurePaths(fs gofs.Fs) (Paths, errorsx.Error) {
	rootDir, err := userextra.ExpandUser(c.RootDir)
	if err != nil {
		return Paths{}, errorsx.Wrap(err)
	}

	paths := Paths{
		ImagesDir: filepath.Join(rootDir, "images"),
		TraceDir:  filepath.Join(rootDir, "trace"),
	}

	for _, dirPath := range []string{paths.ImagesDir, paths.TraceDir} {
		err := fs.MkdirAll(dirPath, 0755)
		if err != nil {
			return Paths{}, errorsx.Wrap(err, "dirPath", dirPath)
		}
	}

	return paths, nil
}

// CloseFunc releases a cache's resources
type CloseFunc func() errorsx.Error

func nopClose() errorsx.Error {
	return nil
}

// OpenCache opens the tile byte cache named by the Cache setting
func (c Config) OpenCache() (tilecache.Cache, CloseFunc, errorsx.Error) {
	conn, err := ParseCacheConnectionURL(c.Cache)
	if err != nil {
		return nil, nil, errorsx.Wrap(err)
	}

	switch conn.Type {
	case CacheTypeNone:
		return tilecache.NopCache{}, nopClose, nil
	case CacheTypeMemory:
		return tilecache.NewMemoryCache(tilecache.DefaultMaxEntries), nopClose, nil
	case CacheTypeBolt:
		filePath, err := userextra.ExpandUser(conn.ConnectionPath)
		if err != nil {
			return nil, nil, errorsx.Wrap(err)
		}

		cache, err := tilecachebolt.NewCache(filePath)
		if err != nil {
			return nil, nil, errorsx.Wrap(err, "filePath", filePath)
		}

		return cache, cache.Close, nil
	case CacheTypePostgresql:
		cache, err := tilecachepostgresql.NewCache(conn.ConnectionPath)
		if err != nil {
			return nil, nil, errorsx.Wrap(err)
		}

		return cache, cache.Close, nil
	default:
		return nil, nil, errorsx.Errorf("unrecognized cache type: %q", conn.Type)
	}
}

// HeadlessOptions builds the environment options for this config
func (c Config) HeadlessOptions(logger *logpkg.Logger, fs gofs.Fs, paths Paths, cache tilecache.Cache) headless.Options {
	options := headless.DefaultOptions()
	options.Logger = logger
	options.Fs = fs
	options.FontPath = c.FontPath
	options.DefaultSize.X = float64(c.Render.Width)
	options.DefaultSize.Y = float64(c.Render.Height)

	options.Loader.Cache = cache
	options.Loader.RetryMax = c.RetryMax
	if c.UserAgent != "" {
		options.Loader.UserAgent = c.UserAgent
	}

	if c.ImagesDir != "" {
		options.ModuleResolver = headless.DirResolver{Dir: c.ImagesDir}
	} else {
		options.ModuleResolver = headless.GeneratedIconsResolver{
			Fs:    fs,
			Dir:   paths.ImagesDir,
			Color: c.MarkerColor,
		}
	}

	return options
}

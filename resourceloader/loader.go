package resourceloader

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/headlessmap/envshim"
	"github.com/jamesrr39/headlessmap/rasterengine"
	"github.com/jamesrr39/headlessmap/tilecache"
	"github.com/vincent-petithory/dataurl"
)

type Options struct {
	// Cache holds fetched HTTP(S) resources. Local files and data URIs are never cached.
	Cache     tilecache.Cache
	RetryMax  int
	Timeout   time.Duration
	UserAgent string
}

func DefaultOptions() Options {
	return Options{
		Cache:     tilecache.NewMemoryCache(tilecache.DefaultMaxEntries),
		RetryMax:  2,
		Timeout:   time.Second * 30,
		UserAgent: "headlessmap",
	}
}

// Loader fetches image bytes from HTTP(S), data URIs and the local filesystem
type Loader struct {
	logger    *logpkg.Logger
	globals   *envshim.Globals
	fs        gofs.Fs
	client    *retryablehttp.Client
	cache     tilecache.Cache
	userAgent string
}

// NewLoader creates the network layer. The ReadableStream polyfill must already be applied.
func NewLoader(logger *logpkg.Logger, globals *envshim.Globals, fs gofs.Fs, options Options) (*Loader, errorsx.Error) {
	if globals == nil || globals.ReadableStream == nil || globals.BlobArrayBuffer == nil {
		return nil, errorsx.Wrap(ErrReadableStreamMissing)
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.Proxy = proxyFunc

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   options.Timeout,
	}
	client.RetryMax = options.RetryMax
	client.Logger = nil
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	cache := options.Cache
	if cache == nil {
		cache = tilecache.NopCache{}
	}

	return &Loader{
		logger:    logger,
		globals:   globals,
		fs:        fs,
		client:    client,
		cache:     cache,
		userAgent: options.UserAgent,
	}, nil
}

// LoadImage fetches and decodes an image. Decoder failures are returned as the decoder reported them.
func (l *Loader) LoadImage(ctx context.Context, source string) (*rasterengine.Image, errorsx.Error) {
	data, err := l.LoadBytes(ctx, source)
	if err != nil {
		return nil, err
	}

	img, err := rasterengine.DecodeImage(data)
	if err != nil {
		return nil, errorsx.Wrap(err, "source", Abbreviate(source))
	}

	return img, nil
}

// LoadBytes dispatches on the source prefix: http(s)://, data:, file://, otherwise a bare path
func (l *Loader) LoadBytes(ctx context.Context, source string) ([]byte, errorsx.Error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.fetch(ctx, source)
	case strings.HasPrefix(source, "data:"):
		return l.decodeDataURI(source)
	case strings.HasPrefix(source, "file://"):
		return l.readFile(strings.TrimPrefix(source, "file://"))
	default:
		return l.readFile(source)
	}
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, errorsx.Error) {
	data, ok, err := l.cache.Get(ctx, source)
	if err != nil {
		l.logger.Warn("couldn't read %q from the cache: %s", source, err.Error())
	} else if ok {
		return data, nil
	}

	startTime := l.globals.Performance.Now()

	req, err := newRequest(ctx, source, l.userAgent)
	if err != nil {
		return nil, errorsx.Wrap(&FetchError{URL: source, Err: err})
	}

	resp, doErr := l.client.Do(req)
	if doErr != nil {
		return nil, errorsx.Wrap(&FetchError{URL: source, Err: doErr})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorsx.Wrap(&FetchError{
			URL:        source,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		})
	}

	stream := l.globals.ReadableStream(resp.Body)
	blob := envshim.NewStreamBlob(resp.Header.Get("Content-Type"), func() *envshim.ReadableStream {
		return stream
	})

	data, readErr := l.globals.BlobArrayBuffer(blob)
	if readErr != nil {
		return nil, errorsx.Wrap(&FetchError{URL: source, Err: readErr})
	}

	l.globals.Performance.MarkResourceTiming(envshim.ResourceTiming{
		Name:          source,
		InitiatorType: "fetch",
		StartTime:     startTime,
		Duration:      l.globals.Performance.Now() - startTime,
		TransferSize:  len(data),
		Status:        resp.StatusCode,
	})

	err = l.cache.Put(ctx, source, data)
	if err != nil {
		l.logger.Warn("couldn't write %q to the cache: %s", source, err.Error())
	}

	return data, nil
}

func newRequest(ctx context.Context, source, userAgent string) (*retryablehttp.Request, errorsx.Error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return req, nil
}

func (l *Loader) readFile(filePath string) ([]byte, errorsx.Error) {
	if idx := strings.Index(filePath, "?"); idx != -1 {
		filePath = filePath[:idx]
	}

	_, err := l.fs.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorsx.Wrap(&NotFoundError{Path: filePath})
		}
		return nil, errorsx.Wrap(err, "path", filePath)
	}

	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, errorsx.Wrap(err, "path", filePath)
	}

	return data, nil
}

// decodeDataURI decodes "data:[<mediatype>][;base64],<data>". Text declaring a charset other than
// UTF-8 is transcoded to UTF-8 with the environment's TextDecoder.
func (l *Loader) decodeDataURI(source string) ([]byte, errorsx.Error) {
	dataURL, err := dataurl.DecodeString(source)
	if err != nil {
		return nil, errorsx.Wrap(&DecodeError{Source: source, Reason: "malformed data URI", Err: err})
	}

	charset, ok := dataURL.MediaType.Params["charset"]
	if !ok || dataURL.MediaType.Type != "text" || isUTF8(charset) || l.globals.TextDecoder == nil {
		return dataURL.Data, nil
	}

	decoder, err := l.globals.TextDecoder(charset)
	if err != nil {
		return nil, errorsx.Wrap(&DecodeError{Source: source, Reason: "unsupported charset", Err: err})
	}

	text, err := decoder.Decode(dataURL.Data)
	if err != nil {
		return nil, errorsx.Wrap(&DecodeError{Source: source, Reason: "invalid " + decoder.Encoding() + " text", Err: err})
	}

	return []byte(text), nil
}

func isUTF8(charset string) bool {
	return strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8")
}

// Abbreviate shortens long sources, such as data URIs, for logs and errors
func Abbreviate(source string) string {
	const maxLen = 64
	if len(source) > maxLen {
		return source[:maxLen] + "..."
	}

	return source
}

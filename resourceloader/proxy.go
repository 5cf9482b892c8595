package resourceloader

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/jamesrr39/goutil/errorsx"
)

// ProxyEnvVars are checked in order; the first non-empty one wins
var ProxyEnvVars = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
	"ALL_PROXY",
	"all_proxy",
}

var (
	proxyMu       sync.Mutex
	proxyResolved bool
	proxyURL      *url.URL
	proxyErr      errorsx.Error
)

// ResolveProxy reads the proxy from the environment on first use and caches it for the life of the process.
// A nil URL means no proxy.
func ResolveProxy() (*url.URL, errorsx.Error) {
	proxyMu.Lock()
	defer proxyMu.Unlock()

	if !proxyResolved {
		proxyURL, proxyErr = proxyFromEnv(os.Getenv)
		proxyResolved = true
	}

	return proxyURL, proxyErr
}

func proxyFromEnv(getenv func(string) string) (*url.URL, errorsx.Error) {
	for _, envVar := range ProxyEnvVars {
		value := strings.TrimSpace(getenv(envVar))
		if value == "" {
			continue
		}

		if !strings.Contains(value, "://") {
			value = "http://" + value
		}

		u, err := url.Parse(value)
		if err != nil {
			return nil, errorsx.Wrap(err, "envVar", envVar)
		}

		return u, nil
	}

	return nil, nil
}

// ResetProxyForTests forgets the cached proxy, so the next request reads the environment again
func ResetProxyForTests() {
	proxyMu.Lock()
	defer proxyMu.Unlock()

	proxyResolved = false
	proxyURL = nil
	proxyErr = nil
}

func proxyFunc(req *http.Request) (*url.URL, error) {
	u, err := ResolveProxy()
	if err != nil {
		return nil, err
	}

	return u, nil
}

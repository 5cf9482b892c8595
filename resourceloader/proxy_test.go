package resourceloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_proxyFromEnv(t *testing.T) {
	type testType struct {
		Name     string
		Env      map[string]string
		Expected string
	}

	tests := []testType{
		{"none", map[string]string{}, ""},
		{"https wins", map[string]string{"HTTPS_PROXY": "http://a:1", "HTTP_PROXY": "http://b:2"}, "http://a:1"},
		{"lowercase", map[string]string{"http_proxy": "http://c:3", "ALL_PROXY": "http://d:4"}, "http://c:3"},
		{"all proxy", map[string]string{"all_proxy": "socks5://e:5"}, "socks5://e:5"},
		{"empty values skipped", map[string]string{"HTTPS_PROXY": " ", "https_proxy": "http://f:6"}, "http://f:6"},
		{"scheme added", map[string]string{"HTTP_PROXY": "proxy.internal:3128"}, "http://proxy.internal:3128"},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			u, err := proxyFromEnv(func(key string) string {
				return tc.Env[key]
			})
			require.NoError(t, err)

			if tc.Expected == "" {
				assert.Nil(t, u)
				return
			}
			require.NotNil(t, u)
			assert.Equal(t, tc.Expected, u.String())
		})
	}
}

func TestResolveProxy_cached(t *testing.T) {
	ResetProxyForTests()
	defer ResetProxyForTests()

	t.Setenv("HTTPS_PROXY", "http://first:1")
	u, err := ResolveProxy()
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "first:1", u.Host)

	t.Setenv("HTTPS_PROXY", "http://second:2")
	u, err = ResolveProxy()
	require.NoError(t, err)
	assert.Equal(t, "first:1", u.Host)

	ResetProxyForTests()
	u, err = ResolveProxy()
	require.NoError(t, err)
	assert.Equal(t, "second:2", u.Host)
}

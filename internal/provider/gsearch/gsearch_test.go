package gsearch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fantaskink/dunebot/internal/provider"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// countingClient 返回固定 body，并记录请求次数与最后一次请求。
func countingClient(status int, body string, calls *atomic.Int32, last **http.Request) *http.Client {
	return &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		if last != nil {
			*last = r
		}
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     make(http.Header),
		}, nil
	})}
}

func TestSearchImage_FirstLink(t *testing.T) {
	var calls atomic.Int32
	var last *http.Request
	body := `{"items":[{"link":"https://img.example.test/sandworm.jpg"},{"link":"https://img.example.test/other.jpg"}]}`
	c := New(Options{APIKey: "key", EngineID: "cx"}, countingClient(http.StatusOK, body, &calls, &last))

	got, err := c.SearchImage(context.Background(), "sandworm")
	require.NoError(t, err)
	require.Equal(t, "https://img.example.test/sandworm.jpg", got)
	require.Equal(t, int32(1), calls.Load())

	q := last.URL.Query()
	require.Equal(t, "key", q.Get("key"))
	require.Equal(t, "cx", q.Get("cx"))
	require.Equal(t, "sandworm", q.Get("q"))
	require.Equal(t, "image", q.Get("searchType"))
}

func TestSearchImage_MissingCredentialsBeforeHTTP(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		key  string
	}{
		{"no api key", Options{EngineID: "cx"}, APIKeyName},
		{"no engine id", Options{APIKey: "key"}, EngineIDName},
		{"neither", Options{}, APIKeyName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			c := New(tc.opts, countingClient(http.StatusOK, `{}`, &calls, nil))

			_, err := c.SearchImage(context.Background(), "sandworm")
			var ce *provider.ConfigError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tc.key, ce.Key)
			require.Zero(t, calls.Load(), "配置错误必须在任何 HTTP 请求之前返回")
		})
	}
}

func TestSearchImage_NotFound(t *testing.T) {
	for _, body := range []string{`{}`, `{"items":[]}`, `{"items":[{"link":""}]}`} {
		var calls atomic.Int32
		c := New(Options{APIKey: "key", EngineID: "cx"}, countingClient(http.StatusOK, body, &calls, nil))
		_, err := c.SearchImage(context.Background(), "nothing")
		require.ErrorIs(t, err, provider.ErrNotFound, "body=%s", body)
	}
}

func TestSearchImage_Unavailable(t *testing.T) {
	var calls atomic.Int32
	c := New(Options{APIKey: "key", EngineID: "cx"}, countingClient(http.StatusForbidden, `{"error":{}}`, &calls, nil))
	_, err := c.SearchImage(context.Background(), "sandworm")
	require.ErrorIs(t, err, provider.ErrSourceUnavailable)
	require.Equal(t, int32(1), calls.Load(), "不重试")
}

package gsearch

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Fantaskink/dunebot/internal/provider"
)

const (
	Name           = "gsearch"
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"

	APIKeyName   = "GOOGLE_API_KEY"
	EngineIDName = "GOOGLE_CSE_ID"
)

// Options 在构造时注入；两个凭据缺一不可。
type Options struct {
	APIKey   string
	EngineID string // Programmable Search Engine 的 cx
	BaseURL  string
}

// Client 是图片搜索：关键词 -> 第一条结果的 link。
type Client struct {
	opts  Options
	httpc *http.Client
}

func New(opts Options, httpc *http.Client) *Client {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	opts.EngineID = strings.TrimSpace(opts.EngineID)
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{opts: opts, httpc: httpc}
}

type searchResponse struct {
	Items []struct {
		Link string `json:"link"`
	} `json:"items"`
}

// SearchImage 返回第一条图片结果的 URL。
//
// 错误：
// - 凭据缺失：*provider.ConfigError（检查发生在任何网络请求之前）
// - 请求失败：provider.ErrSourceUnavailable
// - items 缺失或为空：provider.ErrNotFound
func (c *Client) SearchImage(ctx context.Context, term string) (string, error) {
	if c.opts.APIKey == "" {
		return "", provider.Wrap(Name, "search", nil, &provider.ConfigError{Source: Name, Key: APIKeyName})
	}
	if c.opts.EngineID == "" {
		return "", provider.Wrap(Name, "search", nil, &provider.ConfigError{Source: Name, Key: EngineIDName})
	}

	q := url.Values{}
	q.Set("key", c.opts.APIKey)
	q.Set("cx", c.opts.EngineID)
	q.Set("q", strings.TrimSpace(term))
	q.Set("searchType", "image")
	q.Set("num", "1")

	var sr searchResponse
	if err := provider.GetJSON(ctx, c.httpc, c.opts.BaseURL+"?"+q.Encode(), &sr); err != nil {
		return "", provider.Wrap(Name, "search", provider.ErrSourceUnavailable, err)
	}
	if len(sr.Items) == 0 || strings.TrimSpace(sr.Items[0].Link) == "" {
		return "", provider.Wrap(Name, "search", provider.ErrNotFound, nil)
	}
	return strings.TrimSpace(sr.Items[0].Link), nil
}

package tmdb

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Fantaskink/dunebot/internal/domain"
	"github.com/Fantaskink/dunebot/internal/provider"
)

const (
	// Name 是来源名（用于错误与日志）。
	Name = "tmdb"

	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p"

	// CredentialKey 是缺失凭据时提示给用户的配置名。
	CredentialKey = "TMDB_API_KEY"

	imdbTitleURL = "https://www.imdb.com/title/"
)

// Options 在构造时注入（由上层解析一次配置），业务逻辑内不读环境变量。
type Options struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string // 为空时不传，由 TMDB 使用默认语言
}

// Client 实现“标题(+年份) -> 首条结果 -> 详情”的两阶段查询。
//
// 约束：
// - 只取搜索结果第一条，不做二次消歧
// - 详情阶段失败不致命：返回不带 Details 的记录
// - 不缓存、不重试、不限速
type Client struct {
	opts  Options
	httpc *http.Client
}

func New(opts Options, httpc *http.Client) *Client {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(opts.ImageBaseURL) == "" {
		opts.ImageBaseURL = DefaultImageBaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	opts.ImageBaseURL = strings.TrimRight(opts.ImageBaseURL, "/")
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{opts: opts, httpc: httpc}
}

// Lookup 是带标签的查询结果：Missing 为 nil 表示两个阶段都成功（Complete），
// 否则 Record 只含搜索阶段的身份/简介数据（Partial）。
type Lookup struct {
	Record  domain.MovieRecord
	Missing error
}

// Complete 报告详情阶段是否成功。
func (l Lookup) Complete() bool { return l.Missing == nil }

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
}

type detailsResponse struct {
	Budget  int64   `json:"budget"`
	Revenue int64   `json:"revenue"`
	Runtime *int    `json:"runtime"`
	IMDbID  *string `json:"imdb_id"`
}

// LookupMedia 搜索电影并尽力补全详情。year <= 0 表示不限年份。
//
// 错误：
// - 未配置 API key：*provider.ConfigError（不发请求）
// - 搜索失败：provider.ErrSourceUnavailable
// - 结果为空：provider.ErrNotFound
func (c *Client) LookupMedia(ctx context.Context, title string, year int) (Lookup, error) {
	if c.opts.APIKey == "" {
		return Lookup{}, provider.Wrap(Name, "search", nil, &provider.ConfigError{Source: Name, Key: CredentialKey})
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Lookup{}, provider.Wrap(Name, "search", provider.ErrNotFound, fmt.Errorf("标题为空"))
	}

	q := c.query()
	q.Set("query", title)
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}

	var sr searchResponse
	if err := provider.GetJSON(ctx, c.httpc, c.opts.BaseURL+"/search/movie?"+q.Encode(), &sr); err != nil {
		return Lookup{}, provider.Wrap(Name, "search", provider.ErrSourceUnavailable, err)
	}
	if len(sr.Results) == 0 {
		return Lookup{}, provider.Wrap(Name, "search", provider.ErrNotFound, nil)
	}

	top := sr.Results[0]
	rec := domain.MovieRecord{
		ID:          top.ID,
		Title:       strings.TrimSpace(top.Title),
		ReleaseDate: strings.TrimSpace(top.ReleaseDate),
		Overview:    top.Overview,
	}
	if top.PosterPath != nil {
		rec.PosterPath = strings.TrimSpace(*top.PosterPath)
	}

	details, err := c.details(ctx, top.ID)
	if err != nil {
		log.Printf("[tmdb] details unavailable id=%d: %v", top.ID, err)
		return Lookup{Record: rec, Missing: provider.Wrap(Name, "details", provider.ErrDetailsUnavailable, err)}, nil
	}
	rec.Details = details
	return Lookup{Record: rec}, nil
}

func (c *Client) details(ctx context.Context, id int64) (*domain.MovieDetails, error) {
	u := c.opts.BaseURL + "/movie/" + strconv.FormatInt(id, 10) + "?" + c.query().Encode()

	var dr detailsResponse
	if err := provider.GetJSON(ctx, c.httpc, u, &dr); err != nil {
		return nil, err
	}
	d := &domain.MovieDetails{
		Budget:  dr.Budget,
		Revenue: dr.Revenue,
		Runtime: dr.Runtime,
	}
	if dr.IMDbID != nil {
		d.IMDbID = strings.TrimSpace(*dr.IMDbID)
	}
	return d, nil
}

func (c *Client) query() url.Values {
	q := url.Values{}
	q.Set("api_key", c.opts.APIKey)
	if lang := strings.TrimSpace(c.opts.Language); lang != "" {
		q.Set("language", lang)
	}
	return q
}

// PosterURL 把 poster_path 拼成原图 URL；path 为空返回空串。
func (c *Client) PosterURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.opts.ImageBaseURL + "/original" + path
}

// IMDbURL 返回 IMDb 详情页；id 为空返回空串。
func IMDbURL(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return imdbTitleURL + url.PathEscape(id)
}

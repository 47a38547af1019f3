package goodreads

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Fantaskink/dunebot/internal/domain"
	"github.com/Fantaskink/dunebot/internal/provider"
)

const (
	Name           = "goodreads"
	DefaultBaseURL = "https://www.goodreads.com"
)

// Client 实现 Goodreads 的页面抓取与 HTML 解析。
//
// 约束：
// - 必须先搜索再进入详情页（不能直接拼详情 URL）
// - 只看第一页搜索结果的第一行，不翻页、不重试
// - Parse 是纯函数：相同 html + pageURL => 相同输出
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New 构造 client；baseURL 为空时使用 https://www.goodreads.com。
func New(baseURL string, httpc *http.Client) *Client {
	u := strings.TrimSpace(baseURL)
	if u == "" {
		u = DefaultBaseURL
	}
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(u, "/"), httpc: httpc}
}

// LookupDocument 搜索图书并抓取详情页字段。
//
// 错误：
// - 搜索页/详情页请求失败：provider.ErrSourceUnavailable
// - 搜索页没有结果表格/行/链接：provider.ErrNoResults（不会请求详情页）
// 单个字段抽取失败只会让该字段为空，不会返回错误。
func (c *Client) LookupDocument(ctx context.Context, title string) (domain.BookRecord, error) {
	html, pageURL, err := c.Fetch(ctx, title)
	if err != nil {
		return domain.BookRecord{}, err
	}
	rec, err := Parse(html, pageURL)
	if err != nil {
		return domain.BookRecord{}, provider.Wrap(Name, "parse", provider.ErrSourceUnavailable, err)
	}
	return rec, nil
}

// Fetch 先搜索再进入详情页：<base>/search?q=<title>
func (c *Client) Fetch(ctx context.Context, title string) ([]byte, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, "", provider.Wrap(Name, "search", provider.ErrNoResults, errors.New("标题为空"))
	}

	searchURL := c.baseURL + "/search?q=" + url.QueryEscape(title)
	searchHTML, err := provider.Get(ctx, c.httpc, searchURL)
	if err != nil {
		return nil, "", provider.Wrap(Name, "search", provider.ErrSourceUnavailable, err)
	}

	href, err := findDetailHref(searchHTML)
	if err != nil {
		return nil, "", provider.Wrap(Name, "search", provider.ErrNoResults, err)
	}

	pageURL := resolveURL(c.baseURL+"/", href)
	b, err := provider.Get(ctx, c.httpc, pageURL)
	if err != nil {
		return nil, "", provider.Wrap(Name, "details", provider.ErrSourceUnavailable, err)
	}
	return b, pageURL, nil
}

// Parse 把详情页 HTML 解析为 BookRecord。只有 HTML 本身不可用时才返回错误。
func Parse(html []byte, pageURL string) (domain.BookRecord, error) {
	if len(html) == 0 {
		return domain.BookRecord{}, errors.New("html 为空")
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.BookRecord{}, err
	}
	return extractAll(doc, strings.TrimSpace(pageURL)), nil
}

// findDetailHref 取结果表格第一行的第一个链接（优先 a.bookTitle）。
func findDetailHref(searchHTML []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(searchHTML))
	if err != nil {
		return "", err
	}

	table := doc.Find("table.tableList").First()
	if table.Length() == 0 {
		return "", errors.New("搜索页中没有结果表格")
	}
	row := table.Find("tr").First()
	if row.Length() == 0 {
		return "", errors.New("结果表格没有任何行")
	}

	link := row.Find("a.bookTitle[href]").First()
	if link.Length() == 0 {
		link = row.Find("a[href]").First()
	}
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		return "", errors.New("结果行中没有链接")
	}
	return href, nil
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

package goodreads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fantaskink/dunebot/internal/provider"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err, "读取 fixture 失败：%s", name)
	return b
}

func TestFindDetailHref_FromSearchFixture(t *testing.T) {
	href, err := findDetailHref(readFixture(t, "search.html"))
	require.NoError(t, err)
	require.Equal(t, "/book/show/44767458-dune?from_search=true&from_srp=true&qid=abc&rank=1", href)
}

func TestFindDetailHref_NoTable(t *testing.T) {
	_, err := findDetailHref(readFixture(t, "search_empty.html"))
	require.Error(t, err)

	_, err = findDetailHref([]byte(`<table class="tableList"></table>`))
	require.Error(t, err, "没有行时应失败")

	_, err = findDetailHref([]byte(`<table class="tableList"><tr><td>no link</td></tr></table>`))
	require.Error(t, err, "没有链接时应失败")
}

func TestParse_FullPage(t *testing.T) {
	rec, err := Parse(readFixture(t, "book.html"), "https://www.goodreads.com/book/show/44767458-dune?from_search=true")
	require.NoError(t, err)

	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, "Frank Herbert", rec.Author)
	require.NotNil(t, rec.Rating)
	assert.InDelta(t, 4.27, *rec.Rating, 1e-9)
	assert.Equal(t, "https://images-na.ssl-images-amazon.com/images/S/compressed/dune.jpg", rec.Thumbnail)
	assert.Equal(t,
		"Set on the desert planet Arrakis, Dune is the story of Paul Atreides—who would become known as Muad'Dib.\n"+
			"It is a tale of politics, religion & ecology.",
		rec.Description)
	assert.Equal(t, "658 pages", rec.Pages)
	assert.Equal(t, "August 1, 1965", rec.Published)
	assert.Equal(t, "https://www.goodreads.com/book/show/44767458-dune", rec.URL)
}

func TestParse_SparsePageDegradesPerField(t *testing.T) {
	rec, err := Parse(readFixture(t, "book_sparse.html"), "https://www.goodreads.com/book/show/1.zine")
	require.NoError(t, err)

	assert.Equal(t, "Untitled Zine", rec.Title)
	assert.Nil(t, rec.Rating, "N/A 应解析为缺失，而不是 0")
	assert.Empty(t, rec.Author)
	assert.Empty(t, rec.Thumbnail)
	assert.Empty(t, rec.Description)
	assert.Empty(t, rec.Pages, "详情区不存在时页数缺失")
	assert.Empty(t, rec.Published, "详情区不存在时出版信息缺失")
	assert.Equal(t, "https://www.goodreads.com/book/show/1.zine", rec.URL, "没有 canonical 时回退到页面 URL")
}

func TestParse_OnlyPagesInDetails(t *testing.T) {
	html := `<div class="FeaturedDetails"><p>96 pages, Kindle Edition</p></div>`
	rec, err := Parse([]byte(html), "")
	require.NoError(t, err)
	assert.Equal(t, "96 pages", rec.Pages)
	assert.Empty(t, rec.Published)
}

func TestParseRating(t *testing.T) {
	r := parseRating("4.2")
	require.NotNil(t, r)
	assert.Equal(t, 4.2, *r)

	assert.Nil(t, parseRating("N/A"))
	assert.Nil(t, parseRating(""))
	assert.Nil(t, parseRating("7.5"), "超出 0-5 视为缺失")
}

func TestRunExtractor_PanicIsolated(t *testing.T) {
	boom := extractor{field: "boom", fn: nil} // nil fn 调用会 panic
	v, ok := runExtractor(boom, nil, "")
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestParse_EmptyHTML(t *testing.T) {
	_, err := Parse(nil, "https://example.test")
	require.Error(t, err)
}

type fakeSite struct {
	search, detail atomic.Int32
	searchFixture  string
	detailStatus   int
}

func (f *fakeSite) server(t *testing.T) *httptest.Server {
	t.Helper()
	searchHTML := readFixture(t, f.searchFixture)
	bookHTML := readFixture(t, "book.html")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			f.search.Add(1)
			assert.Equal(t, "dune", r.URL.Query().Get("q"))
			_, _ = w.Write(searchHTML)
		case "/book/show/44767458-dune":
			f.detail.Add(1)
			if f.detailStatus != 0 {
				w.WriteHeader(f.detailStatus)
				return
			}
			_, _ = w.Write(bookHTML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupDocument_TwoStage(t *testing.T) {
	f := &fakeSite{searchFixture: "search.html"}
	srv := f.server(t)
	c := New(srv.URL, srv.Client())

	rec, err := c.LookupDocument(context.Background(), "dune")
	require.NoError(t, err)
	assert.Equal(t, "Dune", rec.Title)
	assert.Equal(t, int32(1), f.search.Load())
	assert.Equal(t, int32(1), f.detail.Load())
}

func TestLookupDocument_NoResultsSkipsDetail(t *testing.T) {
	f := &fakeSite{searchFixture: "search_empty.html"}
	srv := f.server(t)
	c := New(srv.URL, srv.Client())

	_, err := c.LookupDocument(context.Background(), "dune")
	require.ErrorIs(t, err, provider.ErrNoResults)
	assert.Zero(t, f.detail.Load(), "没有结果时不应请求详情页")
}

func TestLookupDocument_DetailUnavailable(t *testing.T) {
	f := &fakeSite{searchFixture: "search.html", detailStatus: http.StatusForbidden}
	srv := f.server(t)
	c := New(srv.URL, srv.Client())

	_, err := c.LookupDocument(context.Background(), "dune")
	require.ErrorIs(t, err, provider.ErrSourceUnavailable)
	var hs *provider.HTTPStatusError
	require.ErrorAs(t, err, &hs)
	assert.Equal(t, http.StatusForbidden, hs.StatusCode)
	assert.Equal(t, int32(1), f.detail.Load(), "不重试")
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://www.goodreads.com/book/show/1", resolveURL("https://www.goodreads.com/", "/book/show/1"))
	assert.Equal(t, "https://cdn.example.test/a", resolveURL("https://www.goodreads.com/", "//cdn.example.test/a"))
	assert.Equal(t, "http://x.test/a", resolveURL("https://www.goodreads.com/", "http://x.test/a"))
	assert.Empty(t, resolveURL("https://www.goodreads.com/", " "))
}

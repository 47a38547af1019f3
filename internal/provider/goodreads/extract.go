package goodreads

import (
	"html"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Fantaskink/dunebot/internal/domain"
)

// 详情区（FeaturedDetails）里第 N 个 <p> 是页数，第 N+1 个是出版信息。
const (
	detailsContainer = "div.FeaturedDetails"
	detailsItem      = "p"
	pagesIndex       = 0
)

// extractor 从文档中独立抽取一个字段；ok=false 表示该字段缺失。
type extractor struct {
	field string
	fn    func(doc *goquery.Document, pageURL string) (string, bool)
}

// extractors 的顺序只影响日志，不影响结果：每个字段互不依赖。
var extractors = []extractor{
	{"title", extractTitle},
	{"author", extractAuthor},
	{"rating", extractRating},
	{"thumbnail", extractThumbnail},
	{"description", extractDescription},
	{"pages", extractPages},
	{"published", extractPublished},
	{"url", extractURL},
}

var textPolicy = bluemonday.StrictPolicy()

func extractAll(doc *goquery.Document, pageURL string) domain.BookRecord {
	values := make(map[string]string, len(extractors))
	for _, ex := range extractors {
		if v, ok := runExtractor(ex, doc, pageURL); ok {
			values[ex.field] = v
		}
	}

	rec := domain.BookRecord{
		Title:       values["title"],
		Author:      values["author"],
		Thumbnail:   values["thumbnail"],
		Description: values["description"],
		Pages:       values["pages"],
		Published:   values["published"],
		URL:         values["url"],
	}
	if s, ok := values["rating"]; ok {
		rec.Rating = parseRating(s)
	}
	return rec
}

// runExtractor 隔离单个字段：panic 也只让该字段缺失。
func runExtractor(ex extractor, doc *goquery.Document, pageURL string) (v string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[goodreads] extract %s: %v", ex.field, r)
			v, ok = "", false
		}
	}()
	v, ok = ex.fn(doc, pageURL)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// parseRating 解析 0.0-5.0 的评分；解析失败或越界返回 nil（缺失，而不是 0）。
func parseRating(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 || f > 5 {
		return nil
	}
	return &f
}

func firstText(doc *goquery.Document, sel string) (string, bool) {
	s := doc.Find(sel).First()
	if s.Length() == 0 {
		return "", false
	}
	return normSpace(s.Text()), true
}

func extractTitle(doc *goquery.Document, _ string) (string, bool) {
	if t, ok := firstText(doc, `h1[data-testid="bookTitle"]`); ok && t != "" {
		return t, true
	}
	return metaContent(doc, "og:title")
}

func extractAuthor(doc *goquery.Document, _ string) (string, bool) {
	return firstText(doc, `span.ContributorLink__name`)
}

func extractRating(doc *goquery.Document, _ string) (string, bool) {
	return firstText(doc, `div.RatingStatistics__rating`)
}

func extractThumbnail(doc *goquery.Document, _ string) (string, bool) {
	if src, ok := doc.Find(`div.BookCover img.ResponsiveImage`).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return src, true
	}
	return metaContent(doc, "og:image")
}

var brRE = regexp.MustCompile(`(?i)<br\s*/?>`)

func extractDescription(doc *goquery.Document, _ string) (string, bool) {
	s := doc.Find(`div[data-testid="description"] span.Formatted`).First()
	if s.Length() == 0 {
		return "", false
	}
	raw, err := s.Html()
	if err != nil {
		return "", false
	}
	// StrictPolicy 会去掉所有标签并转义实体；先把换行标签换成 \n，最后再反转义。
	text := html.UnescapeString(textPolicy.Sanitize(brRE.ReplaceAllString(raw, "\n")))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = normSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), len(out) > 0
}

// detailsItemText 取详情区第 i 个条目的文本；详情区不存在时 ok=false。
func detailsItemText(doc *goquery.Document, i int) (string, bool) {
	c := doc.Find(detailsContainer).First()
	if c.Length() == 0 {
		return "", false
	}
	items := c.Find(detailsItem)
	if i >= items.Length() {
		return "", false
	}
	return normSpace(items.Eq(i).Text()), true
}

// extractPages 例如 "412 pages, Hardcover" -> "412 pages"
func extractPages(doc *goquery.Document, _ string) (string, bool) {
	t, ok := detailsItemText(doc, pagesIndex)
	if !ok {
		return "", false
	}
	if i := strings.Index(t, ","); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t), true
}

// extractPublished 例如 "First published August 1, 1965" -> "August 1, 1965"（不解析日期）
func extractPublished(doc *goquery.Document, _ string) (string, bool) {
	t, ok := detailsItemText(doc, pagesIndex+1)
	if !ok {
		return "", false
	}
	for _, p := range []string{"First published", "Published"} {
		if strings.HasPrefix(t, p) {
			t = strings.TrimSpace(strings.TrimPrefix(t, p))
			break
		}
	}
	return t, true
}

func extractURL(doc *goquery.Document, pageURL string) (string, bool) {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return resolveURL(pageURL, href), true
	}
	return pageURL, pageURL != ""
}

func metaContent(doc *goquery.Document, property string) (string, bool) {
	v, ok := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return v, ok
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

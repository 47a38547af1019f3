// Package assemble 把各来源的原始记录映射成统一的 domain.MediaSummary。
//
// 这里只有纯函数：不发请求、不读配置、不修改入参。
package assemble

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Fantaskink/dunebot/internal/domain"
)

const (
	// DescriptionLimit 是简介的最大字符数（按 rune 计）。
	DescriptionLimit = 500
	ellipsis         = "..."

	MovieFooter = "Data sourced from TMDb"
	BookFooter  = "Data sourced from Goodreads"
)

var printer = message.NewPrinter(language.English)

// Thousands 以 "," 从低位开始每三位分组：1234567 -> "1,234,567"。
func Thousands(n int64) string {
	return printer.Sprintf("%d", n)
}

// Truncate 超过 limit 个字符时截到 limit 并追加 "..."；否则原样返回。
func Truncate(s string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + ellipsis
}

var yearRE = regexp.MustCompile(`^(\d{4})`)

// titleWithYear: "Jaws" + "1975-06-20" -> "Jaws (1975)"；无法得到年份时原样返回。
func titleWithYear(title, releaseDate string) string {
	m := yearRE.FindStringSubmatch(strings.TrimSpace(releaseDate))
	if m == nil || title == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, m[1])
}

func copyColor(c *domain.RGB) *domain.RGB {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}

// Movie 组装电影卡片。
//
// 规则：
// - 字段顺序固定：Budget、Revenue、Runtime、IMDb Link
// - Details 为 nil 时只有标题、简介和海报，没有任何字段
// - Budget/Revenue 为 0 时仍渲染为 $0（TMDB 用 0 表示未知）
// - posterURL 为空时 color 被忽略
func Movie(rec domain.MovieRecord, posterURL, imdbURL string, color *domain.RGB) domain.MediaSummary {
	s := domain.MediaSummary{
		Title:       titleWithYear(strings.TrimSpace(rec.Title), rec.ReleaseDate),
		URL:         imdbURL,
		Thumbnail:   posterURL,
		Description: Truncate(rec.Overview, DescriptionLimit),
		Fields:      []domain.Field{},
		Footer:      MovieFooter,
	}
	if posterURL != "" {
		s.Color = copyColor(color)
	}

	if d := rec.Details; d != nil {
		s.Fields = append(s.Fields,
			domain.Field{Name: "Budget", Value: "$" + Thousands(d.Budget), Inline: true},
			domain.Field{Name: "Revenue", Value: "$" + Thousands(d.Revenue), Inline: true},
		)
		if d.Runtime != nil {
			s.Fields = append(s.Fields, domain.Field{Name: "Runtime", Value: fmt.Sprintf("%d minutes", *d.Runtime), Inline: true})
		}
	}
	if imdbURL != "" {
		s.Fields = append(s.Fields, domain.Field{Name: "IMDb Link", Value: imdbURL, Inline: false})
	}
	return s
}

// Book 组装图书卡片。字段顺序：Author、Published、Pages、Rating；缺失的字段直接省略。
func Book(rec domain.BookRecord, color *domain.RGB) domain.MediaSummary {
	s := domain.MediaSummary{
		Title:       strings.TrimSpace(rec.Title),
		URL:         rec.URL,
		Thumbnail:   rec.Thumbnail,
		Description: Truncate(rec.Description, DescriptionLimit),
		Fields:      []domain.Field{},
		Footer:      BookFooter,
	}
	if rec.Thumbnail != "" {
		s.Color = copyColor(color)
	}

	add := func(name, value string) {
		if value = strings.TrimSpace(value); value != "" {
			s.Fields = append(s.Fields, domain.Field{Name: name, Value: value, Inline: true})
		}
	}
	add("Author", rec.Author)
	add("Published", rec.Published)
	add("Pages", rec.Pages)
	if rec.Rating != nil {
		add("Rating", fmt.Sprintf("%.1f/5", *rec.Rating))
	}
	return s
}

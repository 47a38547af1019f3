// Package app 把来源适配器、取色与组装串成一次命令调用。
//
// 约束：
// - 每次调用只产出一个 domain.Reply：要么一张卡片，要么一条文本
// - 除配置缺失与第一阶段失败外，任何错误都在本地降级吸收
// - Service 无可变共享状态，可被多个调用并发使用
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Fantaskink/dunebot/internal/assemble"
	"github.com/Fantaskink/dunebot/internal/domain"
	"github.com/Fantaskink/dunebot/internal/provider"
	"github.com/Fantaskink/dunebot/internal/provider/tmdb"
)

// 展示给用户的固定文案。
const (
	MsgTMDBKeyMissing   = "TMDB_API_KEY not set"
	MsgMovieSearchError = "Error searching for movie"
	MsgBookSearchError  = "Error searching for book"
	MsgNoResults        = "No results found"

	MsgImageNotConfigured = "Image search is not configured"
	MsgImageSearchError   = "Error searching for image"
	MsgNoImage            = "No image found"
)

// MovieSource 是结构化元数据源（TMDB）。
type MovieSource interface {
	LookupMedia(ctx context.Context, title string, year int) (tmdb.Lookup, error)
	PosterURL(path string) string
}

// BookSource 是 HTML 抓取源（Goodreads）。
type BookSource interface {
	LookupDocument(ctx context.Context, title string) (domain.BookRecord, error)
}

// ImageSource 是图片搜索。
type ImageSource interface {
	SearchImage(ctx context.Context, term string) (string, error)
}

// ColorSource 从图片 URL 提取代表色。
type ColorSource interface {
	AccentColor(ctx context.Context, url string) (domain.RGB, error)
}

// Invocation 标识一次命令调用（只用于日志与观察者）。
type Invocation struct {
	ID      string
	Command string
	Query   string
}

// Observer 接收阶段事件，把进度展示从调用流程中解耦出来。
// 实现必须并发安全：多个调用可能同时在跑。
type Observer interface {
	OnStageDone(inv Invocation, stage string, err error, dur time.Duration)
}

// Service 的任一来源为 nil 时，对应命令按“未配置”处理。
type Service struct {
	Movies MovieSource
	Books  BookSource
	Images ImageSource
	Colors ColorSource

	Observer Observer
}

func (s *Service) begin(command, query string) Invocation {
	inv := Invocation{ID: uuid.NewString(), Command: command, Query: strings.TrimSpace(query)}
	log.Printf("[app] %s id=%s query=%q", command, inv.ID, inv.Query)
	return inv
}

// stage 运行一个阶段并上报耗时与结果。
func (s *Service) stage(inv Invocation, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		log.Printf("[app] %s id=%s stage=%s: %v", inv.Command, inv.ID, name, err)
	}
	if s.Observer != nil {
		s.Observer.OnStageDone(inv, name, err, time.Since(start))
	}
	return err
}

// accent 尽力取色：失败或没有图片时返回 nil，其余字段不受影响。
func (s *Service) accent(ctx context.Context, inv Invocation, imageURL string) *domain.RGB {
	if imageURL == "" || s.Colors == nil {
		return nil
	}
	var c domain.RGB
	if err := s.stage(inv, "color", func() (err error) {
		c, err = s.Colors.AccentColor(ctx, imageURL)
		return err
	}); err != nil {
		return nil
	}
	return &c
}

// Movie 处理 kino 命令。year <= 0 表示不限年份。
func (s *Service) Movie(ctx context.Context, title string, year int) domain.Reply {
	inv := s.begin("kino", title)
	if s.Movies == nil {
		return domain.TextReply(MsgTMDBKeyMissing, true)
	}

	var res tmdb.Lookup
	err := s.stage(inv, "lookup", func() (err error) {
		res, err = s.Movies.LookupMedia(ctx, title, year)
		return err
	})
	switch {
	case err == nil:
	case provider.IsConfigError(err):
		return domain.TextReply(MsgTMDBKeyMissing, true)
	case errors.Is(err, provider.ErrNotFound):
		return domain.TextReply(MsgNoResults, true)
	default:
		return domain.TextReply(MsgMovieSearchError, true)
	}
	if !res.Complete() {
		log.Printf("[app] kino id=%s partial: %v", inv.ID, res.Missing)
	}

	rec := res.Record
	poster := s.Movies.PosterURL(rec.PosterPath)
	imdb := ""
	if rec.Details != nil {
		imdb = tmdb.IMDbURL(rec.Details.IMDbID)
	}
	return domain.SummaryReply(assemble.Movie(rec, poster, imdb, s.accent(ctx, inv, poster)))
}

// Book 处理 book 命令。
func (s *Service) Book(ctx context.Context, title string) domain.Reply {
	inv := s.begin("book", title)
	if s.Books == nil {
		return domain.TextReply(MsgBookSearchError, true)
	}

	var rec domain.BookRecord
	err := s.stage(inv, "lookup", func() (err error) {
		rec, err = s.Books.LookupDocument(ctx, title)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, provider.ErrNoResults), errors.Is(err, provider.ErrNotFound):
		return domain.TextReply(MsgNoResults, true)
	default:
		return domain.TextReply(MsgBookSearchError, true)
	}
	return domain.SummaryReply(assemble.Book(rec, s.accent(ctx, inv, rec.Thumbnail)))
}

// Image 处理 image 命令：成功时回复图片链接（公开可见）。
func (s *Service) Image(ctx context.Context, term string) domain.Reply {
	inv := s.begin("image", term)
	if s.Images == nil {
		return domain.TextReply(MsgImageNotConfigured, true)
	}

	var link string
	err := s.stage(inv, "search", func() (err error) {
		link, err = s.Images.SearchImage(ctx, term)
		return err
	})
	switch {
	case err == nil:
		return domain.TextReply(link, false)
	case provider.IsConfigError(err):
		return domain.TextReply(MsgImageNotConfigured, true)
	case errors.Is(err, provider.ErrNotFound):
		return domain.TextReply(MsgNoImage, true)
	default:
		return domain.TextReply(MsgImageSearchError, true)
	}
}

package command

import (
	"context"

	"github.com/Fantaskink/dunebot/internal/domain"
)

// Service 是内置命令依赖的业务入口（*app.Service 实现它）。
type Service interface {
	Movie(ctx context.Context, title string, year int) domain.Reply
	Book(ctx context.Context, title string) domain.Reply
	Image(ctx context.Context, term string) domain.Reply
}

type builtin struct {
	name, usage string
	year        bool
	run         func(ctx context.Context, a Args) domain.Reply
}

func (b builtin) Name() string { return b.name }
func (b builtin) Usage() string { return b.usage }
func (b builtin) AcceptsYear() bool { return b.year }
func (b builtin) Run(ctx context.Context, a Args) domain.Reply { return b.run(ctx, a) }

// Builtins 返回 kino/book/image 三个内置命令。
func Builtins(svc Service) []Command {
	return []Command{
		builtin{name: "kino", usage: "kino <title> [--year N]", year: true, run: func(ctx context.Context, a Args) domain.Reply {
			return svc.Movie(ctx, a.Query, a.Year)
		}},
		builtin{name: "book", usage: "book <title>", run: func(ctx context.Context, a Args) domain.Reply {
			return svc.Book(ctx, a.Query)
		}},
		builtin{name: "image", usage: "image <term>", run: func(ctx context.Context, a Args) domain.Reply {
			return svc.Image(ctx, a.Query)
		}},
	}
}

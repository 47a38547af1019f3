// Package command 按名字分发聊天命令（kino/book/image）。
package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Fantaskink/dunebot/internal/domain"
)

// ErrUnknownCommand 表示注册表里没有这个命令。
var ErrUnknownCommand = errors.New("unknown command")

// UsageError 表示参数不合法；Usage 是该命令的用法提示。
type UsageError struct {
	Command string
	Usage   string
	Msg     string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s（用法：%s）", e.Command, e.Msg, e.Usage)
}

// Args 是解析后的命令参数。Year <= 0 表示未指定。
type Args struct {
	Query string
	Year  int
}

// Command 是一个可分发的命令。
//
// 约束：Run 不返回 error；所有失败都已映射为文本回复。
type Command interface {
	Name() string
	Usage() string
	AcceptsYear() bool
	Run(ctx context.Context, args Args) domain.Reply
}

// Registry 是命令的只读注册表（按小写 name 索引）。
type Registry struct {
	byName map[string]Command
}

func NewRegistry(cmds ...Command) (Registry, error) {
	byName := make(map[string]Command, len(cmds))
	for _, c := range cmds {
		if c == nil {
			return Registry{}, fmt.Errorf("command 不能为空")
		}
		name := strings.ToLower(strings.TrimSpace(c.Name()))
		if name == "" {
			return Registry{}, fmt.Errorf("command.Name 不能为空")
		}
		if _, ok := byName[name]; ok {
			return Registry{}, fmt.Errorf("重复的 command：%q", name)
		}
		byName[name] = c
	}
	return Registry{byName: byName}, nil
}

func (r Registry) Get(name string) (Command, bool) {
	if r.byName == nil {
		return nil, false
	}
	c, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// Names 按字母序返回所有命令名。
func (r Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dispatch 解析 argv 并运行命令。
func (r Registry) Dispatch(ctx context.Context, name string, argv []string) (domain.Reply, error) {
	c, ok := r.Get(name)
	if !ok {
		return domain.Reply{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	args, err := ParseArgs(argv)
	if err != nil {
		return domain.Reply{}, &UsageError{Command: c.Name(), Usage: c.Usage(), Msg: err.Error()}
	}
	return r.Run(ctx, c, args)
}

// Run 校验已解析的参数并运行命令（HTTP 入口直接构造 Args）。
func (r Registry) Run(ctx context.Context, c Command, args Args) (domain.Reply, error) {
	args.Query = strings.TrimSpace(args.Query)
	if args.Query == "" {
		return domain.Reply{}, &UsageError{Command: c.Name(), Usage: c.Usage(), Msg: "缺少查询内容"}
	}
	if args.Year > 0 && !c.AcceptsYear() {
		return domain.Reply{}, &UsageError{Command: c.Name(), Usage: c.Usage(), Msg: "不支持 --year"}
	}
	if args.Year < 0 {
		return domain.Reply{}, &UsageError{Command: c.Name(), Usage: c.Usage(), Msg: "--year 必须是正整数"}
	}
	return c.Run(ctx, args), nil
}

// ParseArgs 解析 "<words...> [--year N | --year=N]"；非 flag 参数按空格拼成查询。
func ParseArgs(argv []string) (Args, error) {
	var (
		a       Args
		words   []string
		yearSet bool
	)
	setYear := func(v string) error {
		if yearSet {
			return fmt.Errorf("重复的 --year")
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return fmt.Errorf("--year 必须是正整数，实际是 %q", v)
		}
		a.Year, yearSet = n, true
		return nil
	}

	for i := 0; i < len(argv); i++ {
		s := argv[i]
		switch {
		case s == "--year":
			if i+1 >= len(argv) {
				return Args{}, fmt.Errorf("--year 需要一个值")
			}
			i++
			if err := setYear(argv[i]); err != nil {
				return Args{}, err
			}
		case strings.HasPrefix(s, "--year="):
			if err := setYear(strings.TrimPrefix(s, "--year=")); err != nil {
				return Args{}, err
			}
		case strings.HasPrefix(s, "--"):
			return Args{}, fmt.Errorf("未知参数 %q", s)
		default:
			if s = strings.TrimSpace(s); s != "" {
				words = append(words, s)
			}
		}
	}
	a.Query = strings.Join(words, " ")
	return a, nil
}

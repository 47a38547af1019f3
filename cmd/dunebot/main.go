package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/Fantaskink/dunebot/internal/app"
	"github.com/Fantaskink/dunebot/internal/command"
	"github.com/Fantaskink/dunebot/internal/config"
	"github.com/Fantaskink/dunebot/internal/domain"
	"github.com/Fantaskink/dunebot/internal/httpapi"
	"github.com/Fantaskink/dunebot/internal/infra/httpx"
	"github.com/Fantaskink/dunebot/internal/infra/imgx"
	"github.com/Fantaskink/dunebot/internal/infra/logx"
	"github.com/Fantaskink/dunebot/internal/provider/goodreads"
	"github.com/Fantaskink/dunebot/internal/provider/gsearch"
	"github.com/Fantaskink/dunebot/internal/provider/tmdb"
	"github.com/Fantaskink/dunebot/internal/reminder"
)

func main() {
	c := &cli{
		stdout: os.Stdout,
		stderr: os.Stderr,
		fs:     afero.NewOsFs(),
		env:    os.Getenv,
	}
	os.Exit(c.run(os.Args[1:]))
}

// cli 持有进程级依赖；测试用内存文件系统与假环境变量替换它们。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	env    func(string) string
}

func (c *cli) run(args []string) int {
	cfgPath, args, err := parseGlobalArgs(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "参数错误：%v\n\n", err)
		c.printUsage()
		return 2
	}
	if len(args) == 0 || isHelp(args[0]) {
		c.printUsage()
		return 0
	}

	cfg, err := config.Load(c.fs, cfgPath, c.env)
	if err != nil {
		fmt.Fprintf(c.stderr, "%v\n", err)
		return 1
	}
	closer, err := logx.Setup(cfg.Log)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer closer.Close()
	if c.stderr != os.Stderr {
		log.SetOutput(c.stderr)
	}

	svc, err := buildService(cfg)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化失败：%v\n", err)
		return 1
	}
	if isTTY(c.stderr) {
		svc.Observer = newStageUI(c.stderr)
	}
	reg, err := command.NewRegistry(command.Builtins(svc)...)
	if err != nil {
		fmt.Fprintf(c.stderr, "初始化命令注册表失败：%v\n", err)
		return 1
	}

	if args[0] == "serve" {
		return c.serve(cfg, reg, args[1:])
	}
	return c.dispatch(reg, args[0], args[1:])
}

func (c *cli) dispatch(reg command.Registry, name string, argv []string) int {
	for _, a := range argv {
		if isHelp(a) {
			if cmd, ok := reg.Get(name); ok {
				fmt.Fprintf(c.stdout, "用法：\n  dunebot %s\n", cmd.Usage())
				return 0
			}
		}
	}

	reply, err := reg.Dispatch(context.Background(), name, argv)
	if err != nil {
		var ue *command.UsageError
		switch {
		case errors.Is(err, command.ErrUnknownCommand):
			fmt.Fprintf(c.stderr, "未知命令：%q\n\n", name)
			c.printUsage()
		case errors.As(err, &ue):
			fmt.Fprintf(c.stderr, "参数错误：%s\n用法：\n  dunebot %s\n", ue.Msg, ue.Usage)
		default:
			fmt.Fprintf(c.stderr, "%v\n", err)
		}
		return 2
	}

	c.emitReply(reply)
	if reply.IsText() && reply.Ephemeral {
		return 1
	}
	return 0
}

func (c *cli) serve(cfg config.Config, reg command.Registry, argv []string) int {
	listen := cfg.Listen
	for i := 0; i < len(argv); i++ {
		switch a := argv[i]; {
		case a == "--listen" && i+1 < len(argv):
			i++
			listen = argv[i]
		case strings.HasPrefix(a, "--listen="):
			listen = strings.TrimPrefix(a, "--listen=")
		default:
			fmt.Fprintf(c.stderr, "未知参数 %q\n", a)
			return 2
		}
	}

	sched := reminder.New()
	sink := logSink{}
	for _, r := range cfg.Reminders {
		key := reminder.Key{Channel: r.Channel, Target: r.Target}
		spec := r.Spec
		if spec == "" {
			spec = reminder.Daily
		}
		if err := sched.Schedule(key, spec, reminder.MessageJob(sink, key, r.Message)); err != nil {
			fmt.Fprintf(c.stderr, "%v\n", err)
			return 1
		}
	}
	sched.Start()

	srv := &http.Server{
		Addr:              listen,
		Handler:           httpapi.NewRouter(&httpapi.Handler{Commands: reg, Reminders: sched, Sink: sink}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Printf("[serve] listening on %s (commands=%s reminders=%d)", listen, strings.Join(reg.Names(), ","), len(cfg.Reminders))

	code := 0
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(c.stderr, "HTTP 服务退出：%v\n", err)
			code = 1
		}
	case <-ctx.Done():
		log.Printf("[serve] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := sched.Stop(shutdownCtx); err != nil {
		log.Printf("[serve] reminder stop: %v", err)
	}
	return code
}

// buildService 按配置组装来源适配器。凭据缺失不是错误：对应命令在调用时回复提示。
func buildService(cfg config.Config) (*app.Service, error) {
	httpc, err := httpx.NewClient(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("proxy.url 无效：%w", err)
	}
	imgc, err := httpx.NewImageClient(cfg.ProxyURL, cfg.ImageProxy)
	if err != nil {
		return nil, err
	}
	return &app.Service{
		Movies: tmdb.New(tmdb.Options{
			APIKey:       cfg.TMDB.APIKey,
			BaseURL:      cfg.TMDB.BaseURL,
			ImageBaseURL: cfg.TMDB.ImageBaseURL,
			Language:     cfg.TMDB.Language,
		}, httpc),
		Books: goodreads.New(cfg.Goodreads.BaseURL, httpc),
		Images: gsearch.New(gsearch.Options{
			APIKey:   cfg.Google.APIKey,
			EngineID: cfg.Google.CSEID,
			BaseURL:  cfg.Google.BaseURL,
		}, httpc),
		Colors: imgx.Extractor{Client: imgc},
	}, nil
}

// parseGlobalArgs 从任意位置取出 --config，其余参数原样返回。
func parseGlobalArgs(args []string) (cfgPath string, rest []string, err error) {
	rest = make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--config":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--config 需要一个值")
			}
			i++
			cfgPath = args[i]
		case strings.HasPrefix(a, "--config="):
			cfgPath = strings.TrimPrefix(a, "--config=")
		default:
			rest = append(rest, a)
		}
	}
	return cfgPath, rest, nil
}

// emitReply：stdout 是 TTY 时输出可读文本；否则只输出一个 Reply JSON。
func (c *cli) emitReply(r domain.Reply) {
	if !isTTY(c.stdout) {
		_ = json.NewEncoder(c.stdout).Encode(r)
		return
	}
	renderText(c.stdout, r)
}

func renderText(w io.Writer, r domain.Reply) {
	if r.IsText() {
		fmt.Fprintln(w, r.Text)
		return
	}
	s := r.Summary
	fmt.Fprintln(w, s.Title)
	if s.URL != "" {
		fmt.Fprintln(w, s.URL)
	}
	if s.Description != "" {
		fmt.Fprintf(w, "\n%s\n\n", s.Description)
	}
	for _, f := range s.Fields {
		fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Value)
	}
	if s.Thumbnail != "" {
		fmt.Fprintf(w, "  image: %s\n", s.Thumbnail)
	}
	if s.Color != nil {
		fmt.Fprintf(w, "  color: #%06X\n", s.Color.Int())
	}
	if s.Footer != "" {
		fmt.Fprintf(w, "-- %s\n", s.Footer)
	}
}

// logSink 把提醒写进日志；真正的聊天投递由上层框架替换。
type logSink struct{}

func (logSink) Send(_ context.Context, channel, text string) error {
	log.Printf("[reminder] -> #%s: %s", channel, text)
	return nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func (c *cli) printUsage() {
	fmt.Fprint(c.stdout, `用法：
  dunebot [--config dunebot.yml] <command> [args]

命令：
  kino <title> [--year N]   查询电影（TMDB）
  book <title>              查询图书（Goodreads）
  image <term>              图片搜索（Google Custom Search）
  serve [--listen ADDR]     启动 HTTP 命令分发与提醒服务

环境变量：
  TMDB_API_KEY, GOOGLE_API_KEY, GOOGLE_CSE_ID, DUNEBOT_PROXY
`)
}

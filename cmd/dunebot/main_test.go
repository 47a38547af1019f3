package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Fantaskink/dunebot/internal/app"
	"github.com/Fantaskink/dunebot/internal/config"
	"github.com/Fantaskink/dunebot/internal/domain"
)

func newTestCLI(t *testing.T, yml string, env map[string]string) (*cli, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if yml != "" {
		if err := afero.WriteFile(fsys, config.DefaultFile, []byte(yml), 0o644); err != nil {
			t.Fatalf("写入配置失败：%v", err)
		}
	}
	var stdout, stderr bytes.Buffer
	return &cli{
		stdout: &stdout,
		stderr: &stderr,
		fs:     fsys,
		env:    func(k string) string { return env[k] },
	}, &stdout, &stderr
}

func fakeTMDB(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search/movie":
			if r.URL.Query().Get("query") == "zzzz" {
				fmt.Fprint(w, `{"results":[]}`)
				return
			}
			fmt.Fprint(w, `{"results":[{"id":578,"title":"Jaws","release_date":"1975-06-20","overview":"Shark.","poster_path":null}]}`)
		case "/movie/578":
			fmt.Fprint(w, `{"budget":7000000,"revenue":470700000,"runtime":124,"imdb_id":"tt0073195"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCLI_NoTTY_StdoutOnlyReplyJSON(t *testing.T) {
	srv := fakeTMDB(t)
	c, stdout, _ := newTestCLI(t, "tmdb:\n  base_url: "+srv.URL+"\n", map[string]string{config.EnvTMDBKey: "k"})

	if code := c.run([]string{"kino", "Jaws", "--year", "1975"}); code != 0 {
		t.Fatalf("期望退出码 0，实际=%d", code)
	}

	dec := json.NewDecoder(stdout)
	var r domain.Reply
	if err := dec.Decode(&r); err != nil {
		t.Fatalf("stdout 必须是一个 Reply JSON：%v\n%s", err, stdout.String())
	}
	if dec.More() {
		t.Fatalf("stdout 只能有一个 JSON 值")
	}
	if r.Summary == nil || r.Summary.Title != "Jaws (1975)" {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if len(r.Summary.Fields) != 4 || r.Summary.Fields[0].Value != "$7,000,000" {
		t.Fatalf("unexpected fields: %+v", r.Summary.Fields)
	}
}

func TestCLI_TextRepliesExitOne(t *testing.T) {
	srv := fakeTMDB(t)

	c, stdout, _ := newTestCLI(t, "tmdb:\n  base_url: "+srv.URL+"\n", nil)
	if code := c.run([]string{"kino", "Jaws"}); code != 1 {
		t.Fatalf("缺少 key 期望退出码 1，实际=%d", code)
	}
	if !strings.Contains(stdout.String(), app.MsgTMDBKeyMissing) {
		t.Fatalf("期望输出 %q，实际=%s", app.MsgTMDBKeyMissing, stdout.String())
	}

	c, stdout, _ = newTestCLI(t, "", map[string]string{config.EnvTMDBKey: "k"})
	c.fs = afero.NewMemMapFs()
	_ = afero.WriteFile(c.fs, "/cfg/bot.yml", []byte("tmdb:\n  base_url: "+srv.URL+"\n"), 0o644)
	if code := c.run([]string{"--config", "/cfg/bot.yml", "kino", "zzzz"}); code != 1 {
		t.Fatalf("无结果期望退出码 1，实际=%d", code)
	}
	if !strings.Contains(stdout.String(), app.MsgNoResults) {
		t.Fatalf("期望输出 %q，实际=%s", app.MsgNoResults, stdout.String())
	}
}

func TestCLI_ImageWithoutCredentials(t *testing.T) {
	c, stdout, _ := newTestCLI(t, "", nil)

	if code := c.run([]string{"image", "sandworm"}); code != 1 {
		t.Fatalf("期望退出码 1，实际=%d", code)
	}
	if !strings.Contains(stdout.String(), app.MsgImageNotConfigured) {
		t.Fatalf("期望输出 %q，实际=%s", app.MsgImageNotConfigured, stdout.String())
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	cases := [][]string{
		{"weather", "Arrakis"},
		{"kino"},
		{"book", "Dune", "--year", "1965"},
		{"--config"},
	}
	for _, args := range cases {
		c, _, stderr := newTestCLI(t, "", nil)
		if code := c.run(args); code != 2 {
			t.Fatalf("%v 期望退出码 2，实际=%d stderr=%s", args, code, stderr.String())
		}
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	c, _, stderr := newTestCLI(t, "proxy:\n  url: http://[::1\n", nil)
	if code := c.run([]string{"kino", "Jaws"}); code != 1 {
		t.Fatalf("期望退出码 1，实际=%d", code)
	}
	if !strings.Contains(stderr.String(), config.ErrCodeInvalid) {
		t.Fatalf("stderr 应包含 error_code，实际=%s", stderr.String())
	}
}

func TestCLI_Help(t *testing.T) {
	c, stdout, _ := newTestCLI(t, "", nil)
	if code := c.run(nil); code != 0 {
		t.Fatalf("期望退出码 0，实际=%d", code)
	}
	if !strings.Contains(stdout.String(), "kino <title>") {
		t.Fatalf("usage 缺少 kino：%s", stdout.String())
	}

	c, stdout, _ = newTestCLI(t, "", nil)
	if code := c.run([]string{"book", "--help"}); code != 0 {
		t.Fatalf("期望退出码 0，实际=%d", code)
	}
	if !strings.Contains(stdout.String(), "book <title>") {
		t.Fatalf("子命令帮助缺少用法：%s", stdout.String())
	}
}

func TestParseGlobalArgs(t *testing.T) {
	p, rest, err := parseGlobalArgs([]string{"kino", "--config=x.yml", "Jaws"})
	if err != nil || p != "x.yml" || strings.Join(rest, " ") != "kino Jaws" {
		t.Fatalf("unexpected: %q %v %v", p, rest, err)
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, domain.SummaryReply(domain.MediaSummary{
		Title:  "Dune",
		Fields: []domain.Field{{Name: "Author", Value: "Frank Herbert", Inline: true}},
		Color:  &domain.RGB{R: 0xC8, G: 0x1E, B: 0x3C},
		Footer: "Data sourced from Goodreads",
	}))
	out := buf.String()
	for _, want := range []string{"Dune\n", "Author: Frank Herbert", "color: #C81E3C", "-- Data sourced from Goodreads"} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
}

func TestStageUI(t *testing.T) {
	var buf bytes.Buffer
	ui := newStageUI(&buf)
	inv := app.Invocation{ID: "x", Command: "kino"}
	ui.OnStageDone(inv, "lookup", nil, 1500*time.Millisecond)
	ui.OnStageDone(inv, "color", errors.New("imgx: no palette"), 0)

	out := buf.String()
	if !strings.Contains(out, "kino lookup") || !strings.Contains(out, "ok (1.5s)") {
		t.Fatalf("unexpected: %s", out)
	}
	if !strings.Contains(out, "FAIL imgx: no palette") {
		t.Fatalf("unexpected: %s", out)
	}
}

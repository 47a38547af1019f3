package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Fantaskink/dunebot/internal/app"
)

var _ app.Observer = (*stageUI)(nil)

// stageUI 在交互终端里逐行打印阶段耗时；只写 stderr，不污染 stdout 的回复输出。
type stageUI struct {
	w  io.Writer
	mu sync.Mutex
}

func newStageUI(w io.Writer) *stageUI {
	return &stageUI{w: w}
}

func (p *stageUI) OnStageDone(inv app.Invocation, stage string, err error, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "ok"
	if err != nil {
		status = "FAIL " + truncate(err.Error(), 120)
	}
	fmt.Fprintf(p.w, "[%s] %s %-6s %s (%s)\n",
		time.Now().Format("15:04:05"), inv.Command, stage, status, formatShortDuration(dur))
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

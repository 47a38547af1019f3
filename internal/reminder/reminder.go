// Package reminder 管理按 (频道, 对象) 键控的周期任务，基于 robfig/cron。
//
// 约束：
// - 同一个 Key 最多一个任务；重复 Schedule 会替换旧任务
// - 任务与查询调用不共享任何可变状态
// - 任务收到的 ctx 在 Stop 时取消
package reminder

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Daily 是每 24 小时一次的调度表达式。
const Daily = "@every 24h"

// Every 把间隔转成 cron 的 @every 表达式。
func Every(d time.Duration) string { return "@every " + d.String() }

// Key 标识一个提醒：在哪个频道、提醒谁。
type Key struct {
	Channel string `json:"channel"`
	Target  string `json:"target"`
}

func (k Key) String() string { return k.Channel + "/" + k.Target }

// Job 是一次触发要做的事。
type Job func(ctx context.Context)

// Entry 是对外可见的任务快照。
type Entry struct {
	Key  Key       `json:"key"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

type scheduled struct {
	id   cron.EntryID
	spec string
}

type Scheduler struct {
	c *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[Key]scheduled
}

func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(log.New(log.Writer(), "[reminder] ", log.LstdFlags))
	return &Scheduler{
		c:      cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[Key]scheduled),
	}
}

func normKey(k Key) (Key, error) {
	k = Key{Channel: strings.TrimSpace(k.Channel), Target: strings.TrimSpace(k.Target)}
	if k.Channel == "" || k.Target == "" {
		return Key{}, fmt.Errorf("reminder key 不完整：%q", k.String())
	}
	return k, nil
}

// Schedule 注册（或替换）key 对应的任务。spec 非法时旧任务保持不变。
func (s *Scheduler) Schedule(key Key, spec string, job Job) error {
	key, err := normKey(key)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("reminder %s: job 不能为空", key)
	}
	spec = strings.TrimSpace(spec)

	id, err := s.c.AddFunc(spec, func() { job(s.ctx) })
	if err != nil {
		return fmt.Errorf("reminder %s: 无效的调度表达式 %q: %w", key, spec, err)
	}

	s.mu.Lock()
	old, replaced := s.jobs[key]
	s.jobs[key] = scheduled{id: id, spec: spec}
	s.mu.Unlock()

	if replaced {
		s.c.Remove(old.id)
	}
	log.Printf("[reminder] scheduled %s spec=%q replaced=%t", key, spec, replaced)
	return nil
}

// Cancel 取消 key 对应的任务；不存在时返回 false。
func (s *Scheduler) Cancel(key Key) bool {
	key, err := normKey(key)
	if err != nil {
		return false
	}
	s.mu.Lock()
	old, ok := s.jobs[key]
	delete(s.jobs, key)
	s.mu.Unlock()

	if ok {
		s.c.Remove(old.id)
		log.Printf("[reminder] cancelled %s", key)
	}
	return ok
}

// Keys 按 (Channel, Target) 排序返回当前所有任务的 key。
func (s *Scheduler) Keys() []Key {
	entries := s.Entries()
	out := make([]Key, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

// Entries 返回任务快照；Next 在 Start 之前为零值。
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	out := make([]Entry, 0, len(s.jobs))
	for k, j := range s.jobs {
		out = append(out, Entry{Key: k, Spec: j.spec, Next: s.c.Entry(j.id).Next})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Channel != out[j].Key.Channel {
			return out[i].Key.Channel < out[j].Key.Channel
		}
		return out[i].Key.Target < out[j].Key.Target
	})
	return out
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop 停止调度、取消任务 ctx，并等待正在运行的任务结束（或 ctx 到期）。
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.c.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

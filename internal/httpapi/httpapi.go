// Package httpapi 通过 HTTP 暴露命令分发与提醒管理，供聊天框架的适配层调用。
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Fantaskink/dunebot/internal/command"
	"github.com/Fantaskink/dunebot/internal/reminder"
)

type reminderService interface {
	Schedule(key reminder.Key, spec string, job reminder.Job) error
	Cancel(key reminder.Key) bool
	Entries() []reminder.Entry
}

var _ reminderService = (*reminder.Scheduler)(nil)

type Handler struct {
	Commands  command.Registry
	Reminders reminderService
	Sink      reminder.Sink
}

// NewRouter 注册所有路由。Reminders 为 nil 时不注册提醒相关路由。
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/commands", h.ListCommands).Methods(http.MethodGet)
	r.HandleFunc("/commands/{name}", h.RunCommand).Methods(http.MethodGet)
	if h.Reminders != nil {
		r.HandleFunc("/reminders", h.ListReminders).Methods(http.MethodGet)
		r.HandleFunc("/reminders/{channel}/{target}", h.PutReminder).Methods(http.MethodPut)
		r.HandleFunc("/reminders/{channel}/{target}", h.DeleteReminder).Methods(http.MethodDelete)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type commandInfo struct {
	Name  string `json:"name"`
	Usage string `json:"usage"`
}

func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	names := h.Commands.Names()
	out := make([]commandInfo, 0, len(names))
	for _, n := range names {
		c, _ := h.Commands.Get(n)
		out = append(out, commandInfo{Name: c.Name(), Usage: c.Usage()})
	}
	writeJSON(w, http.StatusOK, out)
}

// RunCommand: GET /commands/{name}?q=...&year=...
//
// 命令本身的失败（未找到、来源不可用）仍是 200 + 文本回复；只有参数错误才是 4xx。
func (h *Handler) RunCommand(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(mux.Vars(r)["name"])
	c, ok := h.Commands.Get(name)
	if !ok {
		http.Error(w, "unknown command: "+name, http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	args := command.Args{Query: q.Get("q")}
	if ys := strings.TrimSpace(q.Get("year")); ys != "" {
		y, err := strconv.Atoi(ys)
		if err != nil || y <= 0 {
			http.Error(w, "year must be a positive integer", http.StatusBadRequest)
			return
		}
		args.Year = y
	}

	reply, err := h.Commands.Run(r.Context(), c, args)
	if err != nil {
		var ue *command.UsageError
		if errors.As(err, &ue) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Reminders.Entries())
}

func reminderKey(r *http.Request) (reminder.Key, bool) {
	vars := mux.Vars(r)
	k := reminder.Key{Channel: strings.TrimSpace(vars["channel"]), Target: strings.TrimSpace(vars["target"])}
	return k, k.Channel != "" && k.Target != ""
}

// PutReminder 创建或替换提醒；spec 为空时每天一次。
func (h *Handler) PutReminder(w http.ResponseWriter, r *http.Request) {
	key, ok := reminderKey(r)
	if !ok {
		http.Error(w, "channel and target are required", http.StatusBadRequest)
		return
	}
	if h.Sink == nil {
		http.Error(w, "no message sink configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Spec    string `json:"spec"`
		Message string `json:"message"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body.Message = strings.TrimSpace(body.Message)
	if body.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	spec := strings.TrimSpace(body.Spec)
	if spec == "" {
		spec = reminder.Daily
	}

	if err := h.Reminders.Schedule(key, spec, reminder.MessageJob(h.Sink, key, body.Message)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	key, ok := reminderKey(r)
	if !ok {
		http.Error(w, "channel and target are required", http.StatusBadRequest)
		return
	}
	if !h.Reminders.Cancel(key) {
		http.Error(w, "reminder not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Fantaskink/dunebot/internal/command"
	"github.com/Fantaskink/dunebot/internal/domain"
	"github.com/Fantaskink/dunebot/internal/httpapi"
	"github.com/Fantaskink/dunebot/internal/reminder"
)

type stubService struct {
	year int
}

func (s *stubService) Movie(_ context.Context, title string, year int) domain.Reply {
	s.year = year
	if title == "zzzz" {
		return domain.TextReply("No results found", true)
	}
	return domain.SummaryReply(domain.MediaSummary{Title: title + " (1975)", Fields: []domain.Field{{Name: "Runtime", Value: "124 minutes", Inline: true}}})
}

func (s *stubService) Book(_ context.Context, title string) domain.Reply {
	return domain.SummaryReply(domain.MediaSummary{Title: title})
}

func (s *stubService) Image(_ context.Context, term string) domain.Reply {
	return domain.TextReply("https://img.example.test/"+term, false)
}

type nullSink struct{}

func (nullSink) Send(context.Context, string, string) error { return nil }

func newServer(t *testing.T) (*httptest.Server, *stubService, *reminder.Scheduler) {
	t.Helper()
	svc := &stubService{}
	reg, err := command.NewRegistry(command.Builtins(svc)...)
	require.NoError(t, err)
	sched := reminder.New()

	srv := httptest.NewServer(httpapi.NewRouter(&httpapi.Handler{Commands: reg, Reminders: sched, Sink: nullSink{}}))
	t.Cleanup(srv.Close)
	return srv, svc, sched
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRunCommand_Summary(t *testing.T) {
	srv, svc, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/commands/kino?q=Jaws&year=1975", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotContains(t, got, "text")
	summary := got["summary"].(map[string]any)
	require.Equal(t, "Jaws (1975)", summary["title"])
	require.Equal(t, 1975, svc.year)
}

func TestRunCommand_TextReplyIsStill200(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/commands/kino?q=zzzz", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, domain.TextReply("No results found", true), got)
}

func TestRunCommand_Errors(t *testing.T) {
	srv, _, _ := newServer(t)

	require.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/commands/weather?q=x", "").StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/commands/kino", "").StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/commands/kino?q=Jaws&year=abc", "").StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/commands/image?q=worm&year=1999", "").StatusCode)
	require.Equal(t, http.StatusMethodNotAllowed, do(t, http.MethodPost, srv.URL+"/commands/kino?q=Jaws", "").StatusCode)
}

func TestListCommands(t *testing.T) {
	srv, _, _ := newServer(t)

	resp := do(t, http.MethodGet, srv.URL+"/commands", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []struct{ Name, Usage string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 3)
	require.Equal(t, "book", got[0].Name)
	require.Equal(t, "kino <title> [--year N]", got[2].Usage)
}

func TestReminders_Lifecycle(t *testing.T) {
	srv, _, sched := newServer(t)
	url := srv.URL + "/reminders/general/paul"

	resp := do(t, http.MethodPut, url, `{"message":"Happy birthday <@paul>!"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, []reminder.Key{{Channel: "general", Target: "paul"}}, sched.Keys())
	require.Equal(t, reminder.Daily, sched.Entries()[0].Spec)

	// 再次 PUT 替换而不是新增
	resp = do(t, http.MethodPut, url, `{"spec":"0 9 * * *","message":"again"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, sched.Keys(), 1)
	require.Equal(t, "0 9 * * *", sched.Entries()[0].Spec)

	resp = do(t, http.MethodGet, srv.URL+"/reminders", "")
	var entries []reminder.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	require.Equal(t, "paul", entries[0].Key.Target)

	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, url, "").StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, url, "").StatusCode)
	require.Empty(t, sched.Keys())
}

func TestPutReminder_BadRequests(t *testing.T) {
	srv, _, sched := newServer(t)
	url := srv.URL + "/reminders/general/paul"

	for _, body := range []string{
		`{`,
		`{"message":""}`,
		`{"message":"hi","extra":1}`,
		`{"message":"hi","spec":"whenever"}`,
	} {
		require.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, url, body).StatusCode, body)
	}
	require.Empty(t, sched.Keys())
}

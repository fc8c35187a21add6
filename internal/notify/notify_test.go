package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordSender struct {
	name  string
	err   error
	calls []string
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	r.calls = append(r.calls, title)
	return r.err
}
func (r *recordSender) Name() string { return r.name }

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestNotifierFilter(t *testing.T) {
	s := &recordSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{EventOpportunity, " "}, discard())

	if err := n.Notify(context.Background(), EventOpportunity, "hit", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if err := n.Notify(context.Background(), EventScanPartial, "filtered", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.calls) != 1 || s.calls[0] != "hit" {
		t.Errorf("calls = %v, want [hit]", s.calls)
	}

	all := NewNotifier([]Sender{s}, nil, discard())
	if !all.Allows("anything") {
		t.Error("empty event list should allow every event")
	}
}

func TestNotifierJoinsFailures(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordSender{name: "bad", err: boom}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), EventError, "t", "m")
	if !errors.Is(err, boom) {
		t.Errorf("Notify = %v, want wrapped boom", err)
	}
	if len(good.calls) != 1 {
		t.Error("failure of one sender blocked the next")
	}

	var empty *Notifier
	if empty.Enabled() {
		t.Error("nil notifier reported enabled")
	}
}

func TestTelegramSender(t *testing.T) {
	var gotPath string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	if err := s.Send(context.Background(), "Spread 5%", "buy_yes"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if got["chat_id"] != "42" {
		t.Errorf("chat_id = %v", got["chat_id"])
	}
	if text, _ := got["text"].(string); !strings.Contains(text, `buy\_yes`) {
		t.Errorf("text = %q, want escaped underscore", text)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("Send = %v, want status 400 error", err)
	}
}

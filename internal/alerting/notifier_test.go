package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/market"
)

func testAlert() market.SmartAlert {
	return market.SmartAlert{
		ID:         "alert-1",
		Level:      alertcfg.LevelCritical,
		Category:   alertcfg.CategoryBudget,
		Title:      "Budget almost exhausted",
		Message:    "Only 8% of the budget is left",
		Confidence: 95,
		Priority:   10,
		Suggestion: "Focus on one-credit picks",
		Key:        "budget",
	}
}

func testOptions(url string) TelegramOptions {
	return TelegramOptions{
		BotToken:      "token",
		ChatID:        "chat",
		APIBase:       url,
		Timeout:       time.Second,
		RatePerMinute: 600,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottoken/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier(testOptions(srv.URL), testLogger())
	if err := notifier.Notify(context.Background(), Notification{Alert: testAlert(), Silent: true}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["disable_notification"] != true {
		t.Fatalf("silent notification not honoured: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "[Auction CRITICAL] Budget almost exhausted") || !strings.Contains(text, "Suggestion: Focus") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestTelegramNotifierRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier(testOptions(srv.URL), testLogger())
	if err := notifier.Notify(context.Background(), Notification{Alert: testAlert()}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls %d, want 3", calls.Load())
	}
}

func TestTelegramNotifierPermanentError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier(testOptions(srv.URL), testLogger())
	err := notifier.Notify(context.Background(), Notification{Alert: testAlert()})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected ok=false error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("permanent errors must not be retried, calls %d", calls.Load())
	}
}

type recordingNotifier struct {
	notes []Notification
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) error {
	r.notes = append(r.notes, n)
	return r.err
}

func TestDispatcherPolicy(t *testing.T) {
	now := time.Date(2025, 8, 20, 21, 0, 0, 0, time.UTC)
	d := NewDispatcher(Policy{MinLevel: alertcfg.LevelCritical, MinPriority: 8, Cooldown: time.Minute}, testLogger())
	d.now = func() time.Time { return now }
	rec := &recordingNotifier{}
	d.Add("telegram", rec)

	info := market.SmartAlert{ID: "alert-2", Level: alertcfg.LevelInfo, Title: "pace", Priority: 3}
	urgentWarning := market.SmartAlert{ID: "alert-3", Level: alertcfg.LevelWarning, Title: "scarcity", Priority: 9, Key: "scarcity:D"}

	delivered, err := d.Dispatch(context.Background(), "s1", false, []market.SmartAlert{testAlert(), info, urgentWarning})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(rec.notes) != 2 || len(delivered) != 2 {
		t.Fatalf("delivered %d notes, want 2", len(rec.notes))
	}
	if rec.notes[0].SessionID != "s1" || delivered["alert-1"][0] != "telegram" {
		t.Fatalf("unexpected delivery: %+v", delivered)
	}

	// same condition inside the cooldown
	again := testAlert()
	again.ID = "alert-9"
	if d.Allow(again) {
		t.Fatal("cooldown not applied")
	}
	now = now.Add(2 * time.Minute)
	if !d.Allow(again) {
		t.Fatal("cooldown should have elapsed")
	}
}

func TestDispatcherCollectsErrors(t *testing.T) {
	d := NewDispatcher(Policy{}, testLogger())
	failing := &recordingNotifier{err: errors.New("boom")}
	d.Add("telegram", failing)
	d.Add("log", NewLogNotifier(testLogger()))

	delivered, err := d.Dispatch(context.Background(), "", false, []market.SmartAlert{testAlert()})
	if err == nil || !strings.Contains(err.Error(), "telegram: boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if got := delivered["alert-1"]; len(got) != 1 || got[0] != "log" {
		t.Fatalf("log channel should still deliver: %+v", delivered)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

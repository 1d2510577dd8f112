package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func sampleAlert() Alert {
	return Alert{
		Title:     "❌ Donation relay failed",
		Donor:     "Alice",
		Amount:    50000,
		MessageID: "m1",
		Status:    500,
		Error:     "downstream rejected donation: HTTP 500",
		Body:      "database unavailable",
	}
}

func TestAlert_Text(t *testing.T) {
	text := sampleAlert().Text()

	for _, want := range []string{"Donation relay failed", "Donor: Alice", "Amount: Rp 50000", "Message ID: m1", "Status: 500", "Response: database unavailable"} {
		assert.Contains(t, text, want)
	}
}

func TestAlert_TextOmitsEmptyParts(t *testing.T) {
	a := sampleAlert()
	a.Status = 0
	a.Body = ""

	text := a.Text()

	assert.NotContains(t, text, "Status:")
	assert.NotContains(t, text, "Response:")
}

func TestAlert_TextTruncatesOnRuneBoundary(t *testing.T) {
	a := sampleAlert()
	a.Body = "a" + strings.Repeat("é", 300)

	text := a.Text()

	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
	assert.LessOrEqual(t, len(truncate(a.Body, 500)), 500+len("…"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "ab…", truncate("abcdef", 2))
	// 'é' is two bytes; cutting at 2 would split it.
	assert.Equal(t, "a…", truncate("aéé", 2))
}

func TestDispatcher_FansOut(t *testing.T) {
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("boom")}
	d := NewDispatcher(testLogger(), ok, failing)

	d.Dispatch(context.Background(), sampleAlert())

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 2, d.Len())
}

func TestDispatcher_AttachHandlesFailedEvents(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(testLogger(), n)
	events := bus.NewEventBus(testLogger(), 0)
	d.Attach(events)

	events.Emit(bus.Event{Type: bus.EventDonationForwarded})
	events.Emit(bus.Event{Type: bus.EventDonationFailed, Payload: map[string]any{
		"donor":      "Alice",
		"amount":     int64(50000),
		"message_id": "m1",
		"status":     500,
		"error":      "rejected",
	}})
	d.Wait()

	require.Equal(t, 1, n.count())
	got := n.alerts[0]
	assert.Equal(t, "Alice", got.Donor)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, "m1", got.MessageID)
	assert.Equal(t, 500, got.Status)
}

func TestDispatcher_Detach(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(testLogger(), n)
	events := bus.NewEventBus(testLogger(), 0)
	id := d.Attach(events)

	d.Detach(events, id)
	events.Emit(bus.Event{Type: bus.EventDonationFailed, Payload: map[string]any{"donor": "Alice"}})
	d.Wait()

	assert.Zero(t, n.count())
}

func TestSlack_Notify(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL)
	require.NoError(t, err)

	require.NoError(t, s.Notify(context.Background(), sampleAlert()))
	assert.Equal(t, "❌ Donation relay failed", payload["text"])
	attachments, ok := payload["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
}

func TestSlack_NotifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := NewSlack(srv.URL)
	require.NoError(t, err)

	assert.Error(t, s.Notify(context.Background(), sampleAlert()))
}

func TestNewSlack_RequiresURL(t *testing.T) {
	_, err := NewSlack("")
	assert.Error(t, err)
}

func TestNewTelegram_Validation(t *testing.T) {
	_, err := NewTelegram(TelegramConfig{ChatID: "1"})
	assert.Error(t, err)

	_, err = NewTelegram(TelegramConfig{Token: "t", ChatID: "not-a-number"})
	assert.Error(t, err)

	tg, err := NewTelegram(TelegramConfig{Token: "t", ChatID: " -100123 "})
	require.NoError(t, err)
	assert.Equal(t, int64(-100123), tg.chatID)
}

func TestTelegram_Notify(t *testing.T) {
	var (
		mu     sync.Mutex
		chatID string
		text   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"alerts","username":"alerts_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			_ = r.ParseForm()
			mu.Lock()
			chatID = r.FormValue("chat_id")
			text = r.FormValue("text")
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramConfig{Token: "token", ChatID: "42", APIEndpoint: srv.URL + "/bot%s/%s"})
	require.NoError(t, err)

	require.NoError(t, tg.Notify(context.Background(), sampleAlert()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "42", chatID)
	assert.Contains(t, text, "Donor: Alice")
}

func TestTelegram_NotifyCanceled(t *testing.T) {
	tg, err := NewTelegram(TelegramConfig{Token: "token", ChatID: "42", APIEndpoint: "http://127.0.0.1:0/bot%s/%s"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, tg.Notify(ctx, sampleAlert()), context.Canceled)
}

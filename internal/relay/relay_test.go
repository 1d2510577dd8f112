package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
)

func sampleRecord() domain.DonationRecord {
	return domain.DonationRecord{
		Donor:       "Alice",
		AmountMinor: 50000,
		Message:     "Thanks!",
		Timestamp:   "2024-05-01T10:00:00.000Z",
		SourceID:    "1234567890",
	}
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: endpoint, HTTPClient: NewHTTPClient(2 * time.Second)})
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "://bad", "ftp://example.com/x", "/api/webhook"} {
		_, err := NewClient(Config{Endpoint: endpoint})
		assert.Error(t, err, "endpoint %q", endpoint)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "https://example.com/api/webhook"})
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/api/webhook", c.Endpoint())
	assert.Equal(t, DefaultSourceHeader, c.sourceHeader)
	assert.NotNil(t, c.httpClient)
}

func TestForward_Success(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    map[string]any
		gotMethod  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Forward(context.Background(), sampleRecord())

	require.True(t, res.Succeeded(), "unexpected failure: %v", res.Err)
	assert.NoError(t, res.Err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, map[string]any{"ok": true}, res.Response)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "discord-bot", gotHeaders.Get("X-Source"))
	assert.Equal(t, res.RequestID, gotHeaders.Get("X-Request-ID"))

	assert.Equal(t, map[string]any{
		"donator_name": "Alice",
		"amount_raw":   float64(50000),
		"amount":       float64(50000),
		"message":      "Thanks!",
		"created_at":   "2024-05-01T10:00:00.000Z",
		"id":           "1234567890",
		"source":       "discord",
	}, gotBody)
}

func TestForward_CustomSourceHeader(t *testing.T) {
	var source string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source = r.Header.Get("X-Source")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL, SourceHeader: "saweria-relay"})
	require.NoError(t, err)

	res := c.Forward(context.Background(), sampleRecord())

	assert.True(t, res.OK)
	assert.Equal(t, "saweria-relay", source)
}

func TestForward_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("accepted, thanks"))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Forward(context.Background(), sampleRecord())

	assert.True(t, res.OK)
	assert.NoError(t, res.Err)
	assert.Nil(t, res.Response)
	assert.Equal(t, "accepted, thanks", res.Body)
}

func TestForward_EmptySuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Forward(context.Background(), sampleRecord())

	assert.True(t, res.OK)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestForward_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Forward(context.Background(), sampleRecord())

	assert.False(t, res.Succeeded())
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "database unavailable\n", res.Body)
	assert.True(t, errors.Is(res.Err, ErrRejected))
	assert.Nil(t, res.Response)
}

func TestForward_ClientErrorJSONBodyKeptAsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"amount required"}`))
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL).Forward(context.Background(), sampleRecord())

	assert.False(t, res.OK)
	assert.Equal(t, `{"error":"amount required"}`, res.Body)
	assert.Nil(t, res.Response)
}

func TestForward_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	var res Result
	require.NotPanics(t, func() {
		res = newTestClient(t, endpoint).Forward(context.Background(), sampleRecord())
	})

	assert.False(t, res.OK)
	assert.Zero(t, res.StatusCode)
	assert.Error(t, res.Err)
	assert.False(t, errors.Is(res.Err, ErrRejected))
}

func TestForward_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestClient(t, srv.URL).Forward(ctx, sampleRecord())

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestForward_NoAmountSendsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	rec := sampleRecord()
	rec.AmountMinor = 0

	res := newTestClient(t, srv.URL).Forward(context.Background(), rec)

	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrNoAmount)
	assert.False(t, called)
}

func TestNewPayload(t *testing.T) {
	p := NewPayload(sampleRecord())

	assert.Equal(t, Payload{
		DonatorName: "Alice",
		AmountRaw:   50000,
		Amount:      50000,
		Message:     "Thanks!",
		CreatedAt:   "2024-05-01T10:00:00.000Z",
		ID:          "1234567890",
		Source:      "discord",
	}, p)
}

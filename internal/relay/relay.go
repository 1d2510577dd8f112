// Package relay forwards donation records to the downstream ingestion API.
//
// A forward is a single POST: no retry, no queue. Every outcome, including
// transport errors, comes back as a Result value so the caller decides what to
// log or alert on.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
)

const (
	// DefaultSourceHeader tags every request with its origin.
	DefaultSourceHeader = "discord-bot"

	maxResponseBytes = 1 << 20
)

var (
	// ErrNoAmount is reported for records without an amount; nothing is sent.
	ErrNoAmount = errors.New("donation record has no amount")
	// ErrRejected is wrapped by Result.Err for non-2xx responses.
	ErrRejected = errors.New("downstream rejected donation")
)

// Result describes the outcome of one forward attempt.
type Result struct {
	OK         bool
	StatusCode int           // 0 when no response was received
	Body       string        // raw response body
	Response   any           // decoded JSON body of a 2xx response, nil if it did not parse
	RequestID  string        // value of the X-Request-ID header
	Duration   time.Duration // time spent on the round trip
	Err        error         // nil when OK
}

// Succeeded reports whether the donation was accepted downstream.
func (r Result) Succeeded() bool { return r.OK }

// Config configures a relay Client.
type Config struct {
	Endpoint     string
	SourceHeader string       // X-Source value, DefaultSourceHeader when empty
	HTTPClient   *http.Client // NewHTTPClient(0) when nil
	Logger       *slog.Logger
}

// Client posts donation records to a fixed endpoint.
type Client struct {
	endpoint     string
	sourceHeader string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient validates the endpoint and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("relay endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("relay endpoint must be an absolute http(s) URL: %q", cfg.Endpoint)
	}
	if cfg.SourceHeader == "" {
		cfg.SourceHeader = DefaultSourceHeader
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = NewHTTPClient(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		endpoint:     u.String(),
		sourceHeader: cfg.SourceHeader,
		httpClient:   cfg.HTTPClient,
		logger:       cfg.Logger,
	}, nil
}

// Endpoint returns the URL records are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// Forward posts rec to the endpoint once. It never panics and never returns
// a bare error; inspect Result.OK and Result.Err.
func (c *Client) Forward(ctx context.Context, rec domain.DonationRecord) Result {
	res := Result{RequestID: uuid.NewString()}

	if !rec.HasAmount() {
		res.Err = ErrNoAmount
		return res
	}

	body, err := json.Marshal(NewPayload(rec))
	if err != nil {
		res.Err = fmt.Errorf("encode payload: %w", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Source", c.sourceHeader)
	req.Header.Set("X-Request-ID", res.RequestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("post donation: %w", err)
		return res
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	res.Body = string(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Err = fmt.Errorf("%w: HTTP %d", ErrRejected, resp.StatusCode)
		return res
	}

	// The donation is accepted at this point; a bad body only costs us the ack details.
	res.OK = true
	if err != nil {
		c.logger.Debug("reading relay response failed", "request_id", res.RequestID, "error", err)
		return res
	}
	var ack any
	if err := json.Unmarshal(raw, &ack); err != nil {
		c.logger.Debug("relay response is not JSON", "request_id", res.RequestID, "error", err)
		return res
	}
	res.Response = ack
	return res
}

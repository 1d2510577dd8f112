// Package processor turns inbound chat messages into relayed donations.
package processor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/extract"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/metrics"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/relay"
)

const (
	defaultConcurrency = 1
	defaultAckEmoji    = "✅"
	eventSource        = "processor"
)

// Forwarder delivers a donation record downstream. *relay.Client implements it.
type Forwarder interface {
	Forward(ctx context.Context, rec domain.DonationRecord) relay.Result
}

// Loop is the donation pipeline: receive message → extract → forward → acknowledge.
type Loop struct {
	bus         domain.MessageBus
	relay       Forwarder
	events      *bus.EventBus
	logger      *slog.Logger
	concurrency int
	ackEmoji    string
	react       bool
}

// LoopConfig holds the dependencies and tuning parameters of the loop.
type LoopConfig struct {
	Bus         domain.MessageBus
	Relay       Forwarder
	Events      *bus.EventBus // optional
	Logger      *slog.Logger
	Concurrency int    // max parallel forwards (default 1)
	AckEmoji    string // reaction added on success (default ✅)
	React       bool   // add the reaction at all
}

// NewLoop creates a donation loop.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.AckEmoji == "" {
		cfg.AckEmoji = defaultAckEmoji
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		bus:         cfg.Bus,
		relay:       cfg.Relay,
		events:      cfg.Events,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		ackEmoji:    cfg.AckEmoji,
		react:       cfg.React,
	}
}

// Run consumes inbound messages until ctx is done or the bus is closed.
// In-flight messages are finished before Run returns.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("donation loop started", "concurrency", l.concurrency)

	sem := make(chan struct{}, l.concurrency)
	inbound := l.bus.Subscribe()
	defer func() {
		for i := 0; i < cap(sem); i++ {
			sem <- struct{}{}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("donation loop stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				l.logger.Info("inbound channel closed, donation loop stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				// A forward that has started runs to completion; the relay's
				// HTTP timeout bounds it.
				l.Handle(context.WithoutCancel(ctx), m)
			}(msg)
		}
	}
}

// Handle processes one message synchronously and returns the forward result.
// Messages without an amount are not forwarded; their Result carries
// relay.ErrNoAmount.
func (l *Loop) Handle(ctx context.Context, msg domain.InboundMessage) relay.Result {
	metrics.MessagesReceived.Inc()

	rec := extract.Extract(msg)
	l.logger.Info("donation notification received",
		"message_id", msg.ID,
		"donor", rec.Donor,
		"amount", rec.AmountMinor,
	)
	l.emit(bus.EventDonationReceived, recordPayload(rec))

	if !rec.HasAmount() {
		metrics.ExtractionMisses.Inc()
		l.logger.Warn("no amount found, skipping", "message_id", msg.ID)
		l.emit(bus.EventDonationMissed, recordPayload(rec))
		return relay.Result{Err: relay.ErrNoAmount}
	}

	metrics.InFlight.Inc()
	res := l.relay.Forward(ctx, rec)
	metrics.InFlight.Dec()
	if res.Duration > 0 {
		metrics.ForwardLatency.ObserveDuration(res.Duration)
	}

	if !res.Succeeded() {
		l.fail(rec, res)
		return res
	}

	metrics.DonationsForwarded.Inc()
	metrics.AmountForwarded.Add(rec.AmountMinor)
	l.logger.Info("donation forwarded",
		"message_id", rec.SourceID,
		"donor", rec.Donor,
		"amount", rec.AmountMinor,
		"status", res.StatusCode,
		"request_id", res.RequestID,
		"duration", res.Duration,
	)
	payload := recordPayload(rec)
	payload["status"] = res.StatusCode
	payload["request_id"] = res.RequestID
	l.emit(bus.EventDonationForwarded, payload)

	if l.react {
		l.bus.SendOutbound(domain.OutboundMessage{
			Channel:   msg.Channel,
			ChatID:    msg.Origin.ChannelID,
			MessageID: msg.ID,
			Reaction:  l.ackEmoji,
		})
	}
	return res
}

func (l *Loop) fail(rec domain.DonationRecord, res relay.Result) {
	if errors.Is(res.Err, relay.ErrRejected) {
		metrics.ForwardRejected.Inc()
	} else {
		metrics.ForwardTransport.Inc()
	}
	l.logger.Error("donation forward failed",
		"message_id", rec.SourceID,
		"donor", rec.Donor,
		"amount", rec.AmountMinor,
		"status", res.StatusCode,
		"request_id", res.RequestID,
		"body", res.Body,
		"error", res.Err,
	)

	payload := recordPayload(rec)
	payload["status"] = res.StatusCode
	payload["request_id"] = res.RequestID
	payload["body"] = res.Body
	if res.Err != nil {
		payload["error"] = res.Err.Error()
	}
	l.emit(bus.EventDonationFailed, payload)
}

func (l *Loop) emit(eventType string, payload map[string]any) {
	if l.events == nil {
		return
	}
	l.events.Emit(bus.Event{Type: eventType, Source: eventSource, Payload: payload})
}

func recordPayload(rec domain.DonationRecord) map[string]any {
	return map[string]any{
		"donor":      rec.Donor,
		"amount":     rec.AmountMinor,
		"message":    rec.Message,
		"message_id": rec.SourceID,
		"timestamp":  rec.Timestamp,
	}
}

// Package alert delivers operator notifications when a donation could not be
// relayed. Delivery is best effort: failures are logged and counted, never
// propagated back into the donation pipeline.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/metrics"
)

const defaultNotifyTimeout = 10 * time.Second

// Alert describes one failed relay.
type Alert struct {
	Title     string
	Donor     string
	Amount    int64
	MessageID string
	Status    int    // HTTP status, 0 for transport errors
	Error     string // error text
	Body      string // downstream response body, if any
	Time      time.Time
}

// Text renders the alert as a short plain-text message.
func (a Alert) Text() string {
	var sb strings.Builder
	sb.WriteString(a.Title)
	fmt.Fprintf(&sb, "\nDonor: %s\nAmount: Rp %d\nMessage ID: %s", a.Donor, a.Amount, a.MessageID)
	if a.Status != 0 {
		fmt.Fprintf(&sb, "\nStatus: %d", a.Status)
	}
	if a.Error != "" {
		fmt.Fprintf(&sb, "\nError: %s", a.Error)
	}
	if a.Body != "" {
		fmt.Fprintf(&sb, "\nResponse: %s", truncate(a.Body, 500))
	}
	return sb.String()
}

// Notifier is a destination for alerts.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, a Alert) error
}

// Dispatcher fans alerts out to every configured notifier.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. With no notifiers it only logs.
func NewDispatcher(logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		timeout:   defaultNotifyTimeout,
		logger:    logger,
	}
}

// Len returns the number of notifiers.
func (d *Dispatcher) Len() int { return len(d.notifiers) }

// Dispatch sends a to every notifier and waits for all of them.
func (d *Dispatcher) Dispatch(ctx context.Context, a Alert) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, n := range d.notifiers {
		wg.Add(1)
		go func(n Notifier) {
			defer wg.Done()
			if err := n.Notify(ctx, a); err != nil {
				metrics.AlertsFailed.Inc()
				d.logger.Warn("alert delivery failed", "notifier", n.Name(), "message_id", a.MessageID, "error", err)
				return
			}
			d.logger.Debug("alert delivered", "notifier", n.Name(), "message_id", a.MessageID)
		}(n)
	}
	wg.Wait()
}

// Attach subscribes the dispatcher to failed-donation events. Alerts are sent
// in the background so the pipeline never waits on them; Wait drains them.
func (d *Dispatcher) Attach(events *bus.EventBus) string {
	return events.On(bus.EventDonationFailed, func(e bus.Event) {
		if len(d.notifiers) == 0 {
			return
		}
		a := FromEvent(e)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.Dispatch(context.Background(), a)
		}()
	})
}

// Detach stops alerting on events from the handler Attach registered. Alerts
// already started still complete.
func (d *Dispatcher) Detach(events *bus.EventBus, handlerID string) {
	events.Off(bus.EventDonationFailed, handlerID)
}

// Wait blocks until alerts started by Attach have been delivered.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// FromEvent builds an Alert from a donation.failed event payload.
func FromEvent(e bus.Event) Alert {
	a := Alert{Title: "❌ Donation relay failed", Time: e.Timestamp}
	if v, ok := e.Payload["donor"].(string); ok {
		a.Donor = v
	}
	if v, ok := e.Payload["amount"].(int64); ok {
		a.Amount = v
	}
	if v, ok := e.Payload["message_id"].(string); ok {
		a.MessageID = v
	}
	if v, ok := e.Payload["status"].(int); ok {
		a.Status = v
	}
	if v, ok := e.Payload["error"].(string); ok {
		a.Error = v
	}
	if v, ok := e.Payload["body"].(string); ok {
		a.Body = v
	}
	return a
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "…"
}

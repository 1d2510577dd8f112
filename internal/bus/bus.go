// Package bus decouples the Discord gateway from the relay worker.
//
// Notifications flow inbound through a bounded queue; acknowledgments flow
// back out to whichever channel adapter registered for them.
package bus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/metrics"
)

const (
	defaultBufferSize     = 100
	defaultPublishTimeout = 10 * time.Second
)

// Config configures a Queue.
type Config struct {
	BufferSize     int
	PublishTimeout time.Duration // how long Publish waits on a full queue
	Logger         *slog.Logger
}

// Queue is the in-process donation queue. It satisfies domain.MessageBus.
type Queue struct {
	inbound        chan domain.InboundMessage
	done           chan struct{} // closed by Close; wakes publishers waiting on a full queue
	publishTimeout time.Duration
	logger         *slog.Logger

	mu         sync.RWMutex
	closed     bool
	publishers sync.WaitGroup // sends in progress; inbound is closed only after they finish
	handlers   map[string]func(domain.OutboundMessage)
}

// New returns an open queue.
func New(cfg Config) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Queue{
		inbound:        make(chan domain.InboundMessage, cfg.BufferSize),
		done:           make(chan struct{}),
		publishTimeout: cfg.PublishTimeout,
		logger:         cfg.Logger,
		handlers:       make(map[string]func(domain.OutboundMessage)),
	}
}

// Publish enqueues a notification. A full queue is waited on for up to
// PublishTimeout before the notification is dropped and counted. Close
// ends the wait early.
func (q *Queue) Publish(msg domain.InboundMessage) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.logger.Warn("queue closed, notification discarded", "message_id", msg.ID)
		return
	}
	q.publishers.Add(1)
	q.mu.RUnlock()
	defer q.publishers.Done()

	select {
	case q.inbound <- msg:
		return
	default:
	}

	q.logger.Warn("donation queue full, waiting", "message_id", msg.ID, "capacity", cap(q.inbound))
	timer := time.NewTimer(q.publishTimeout)
	defer timer.Stop()

	select {
	case q.inbound <- msg:
		q.logger.Info("notification queued after wait", "message_id", msg.ID)
	case <-timer.C:
		metrics.QueueDropped.Inc()
		q.logger.Error("notification dropped, queue full",
			"message_id", msg.ID,
			"waited", q.publishTimeout,
		)
	case <-q.done:
		metrics.QueueDropped.Inc()
		q.logger.Error("notification dropped, queue closed while full", "message_id", msg.ID)
	}
}

// Subscribe returns the receive side of the queue. It is closed by Close.
func (q *Queue) Subscribe() <-chan domain.InboundMessage {
	return q.inbound
}

// Len reports how many notifications are waiting.
func (q *Queue) Len() int { return len(q.inbound) }

// SendOutbound routes an acknowledgment to the adapter registered under
// msg.Channel. Unrouted acknowledgments are logged and dropped.
func (q *Queue) SendOutbound(msg domain.OutboundMessage) {
	q.mu.RLock()
	handler, ok := q.handlers[msg.Channel]
	q.mu.RUnlock()

	if !ok {
		q.logger.Warn("no acknowledgment handler", "channel", msg.Channel, "message_id", msg.MessageID)
		return
	}
	handler(msg)
}

// OnOutbound registers the acknowledgment handler for a channel, replacing
// any previous one.
func (q *Queue) OnOutbound(channelName string, handler func(domain.OutboundMessage)) {
	q.mu.Lock()
	q.handlers[channelName] = handler
	q.mu.Unlock()
}

// Close stops intake, wakes publishers waiting on a full queue and then
// closes the subscription channel. Queued notifications remain readable.
// Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.publishers.Wait()
	close(q.inbound)
}

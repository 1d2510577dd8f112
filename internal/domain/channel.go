package domain

import "context"

// Channel is a source of donation notifications (Discord).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

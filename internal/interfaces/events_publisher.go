package interfaces

import (
	"context"

	"github.com/sheikh-saqib/room-billing-ledger/internal/models/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, event events.RoomEvent) error
	Close() error
}

package interfaces

import (
	"context"

	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

// RoomStore durably holds room accounts between runs.
type RoomStore interface {
	SaveRoom(ctx context.Context, account models.RoomAccount) error
	LoadRooms(ctx context.Context) ([]models.RoomAccount, error)
	Close() error
}

package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

type RoomEventType string

const (
	RoomRentAdded        RoomEventType = "room.rent_added"
	RoomRentEdited       RoomEventType = "room.rent_edited"
	RoomElectricityAdded RoomEventType = "room.electricity_added"
	RoomWaterAdded       RoomEventType = "room.water_added"
	RoomServiceAdded     RoomEventType = "room.service_added"
	RoomStatusChanged    RoomEventType = "room.status_changed"
	RoomReset            RoomEventType = "room.reset"
)

// RoomEvent is emitted after every successful mutation of a room account.
type RoomEvent struct {
	ID         string             `json:"id"`
	Type       RoomEventType      `json:"type"`
	Room       string             `json:"room"`
	Account    models.RoomAccount `json:"account"`
	OccurredAt time.Time          `json:"occurred_at"`
}

func NewRoomEvent(eventType RoomEventType, account models.RoomAccount) RoomEvent {
	return RoomEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Room:       account.Room,
		Account:    account.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

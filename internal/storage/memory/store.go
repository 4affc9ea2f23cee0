package memory

import (
	"context"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

// MemoryRoomStore keeps room accounts in a map. Nothing survives the process.
type MemoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]models.RoomAccount
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{
		rooms: make(map[string]models.RoomAccount),
	}
}

// SaveRoom stores a copy so later changes by the caller don't leak in.
func (m *MemoryRoomStore) SaveRoom(ctx context.Context, account models.RoomAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[account.Room] = account.Clone()
	return nil
}

// LoadRooms returns copies sorted by room identifier.
func (m *MemoryRoomStore) LoadRooms(ctx context.Context) ([]models.RoomAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make([]models.RoomAccount, 0, len(m.rooms))
	for _, a := range m.rooms {
		accounts = append(accounts, a.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Room < accounts[j].Room
	})
	return accounts, nil
}

func (m *MemoryRoomStore) Close() error {
	return nil
}

// Compile-time check: ensure MemoryRoomStore implements RoomStore interface
var _ interfaces.RoomStore = (*MemoryRoomStore)(nil)

package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

const documentVersion = 1

type document struct {
	Version int                  `json:"version"`
	Rooms   []models.RoomAccount `json:"rooms"`
}

// FileRoomStore keeps every room in one JSON document on disk. Each save
// rewrites the whole document through a temp file and rename.
type FileRoomStore struct {
	path  string
	mu    sync.Mutex
	rooms map[string]models.RoomAccount
}

// NewFileRoomStore reads path if it exists. A missing file is an empty store.
func NewFileRoomStore(path string) (*FileRoomStore, error) {
	if path == "" {
		return nil, errors.New("file store path can't be empty")
	}
	s := &FileRoomStore{
		path:  path,
		rooms: make(map[string]models.RoomAccount),
	}
	if err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileRoomStore) read() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decoding %s: %w", s.path, err)
	}
	if doc.Version != documentVersion {
		return fmt.Errorf("%s: unsupported document version %d", s.path, doc.Version)
	}
	for _, a := range doc.Rooms {
		s.rooms[a.Room] = a
	}
	return nil
}

func (s *FileRoomStore) SaveRoom(ctx context.Context, account models.RoomAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.rooms[account.Room]
	s.rooms[account.Room] = account.Clone()
	if err := s.write(); err != nil {
		if existed {
			s.rooms[account.Room] = previous
		} else {
			delete(s.rooms, account.Room)
		}
		return err
	}
	return nil
}

func (s *FileRoomStore) LoadRooms(ctx context.Context) ([]models.RoomAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sorted(), nil
}

func (s *FileRoomStore) Close() error {
	return nil
}

func (s *FileRoomStore) sorted() []models.RoomAccount {
	accounts := make([]models.RoomAccount, 0, len(s.rooms))
	for _, a := range s.rooms {
		accounts = append(accounts, a.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Room < accounts[j].Room
	})
	return accounts
}

func (s *FileRoomStore) write() error {
	data, err := json.MarshalIndent(document{Version: documentVersion, Rooms: s.sorted()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rooms: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

var _ interfaces.RoomStore = (*FileRoomStore)(nil)

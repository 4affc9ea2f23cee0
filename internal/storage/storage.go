package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage/file"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage/mongodb"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage/postgres"
)

// Open returns the room store selected by cfg.Store.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (interfaces.RoomStore, error) {
	log = log.WithField("store", cfg.Store)

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store, nothing will be kept between runs")
		return memory.NewMemoryRoomStore(), nil

	case config.StoreFile:
		store, err := file.NewFileRoomStore(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.FilePath).Info("using file store")
		return store, nil

	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)

		store := postgres.NewPostgresRoomStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("using postgres store")
		return store, nil

	case config.StoreMongo:
		store, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.WithField("database", cfg.MongoDatabase).Info("using mongo store")
		return store, nil
	}

	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

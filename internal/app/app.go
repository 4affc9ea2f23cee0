package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
	"github.com/sheikh-saqib/room-billing-ledger/internal/events"
	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/ledger"
	"github.com/sheikh-saqib/room-billing-ledger/internal/metrics"
	"github.com/sheikh-saqib/room-billing-ledger/internal/storage"
)

// App is a loaded ledger together with the collaborators it was built from.
type App struct {
	Ledger    *ledger.Ledger
	Registry  *prometheus.Registry
	Log       *logrus.Logger
	store     interfaces.RoomStore
	publisher interfaces.EventPublisher
}

// Build opens the configured store and publisher, creates the ledger and
// repopulates it from the store.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	rates, err := cfg.Rates()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	publisher, err := events.Open(cfg, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	l, err := ledger.New(cfg.Rooms, rates, store,
		ledger.WithPublisher(publisher),
		ledger.WithMetrics(metrics.New(registry)),
		ledger.WithLogger(log),
	)
	if err != nil {
		publisher.Close()
		store.Close()
		return nil, err
	}
	if err := l.Load(ctx); err != nil {
		publisher.Close()
		store.Close()
		return nil, err
	}

	return &App{
		Ledger:    l,
		Registry:  registry,
		Log:       log,
		store:     store,
		publisher: publisher,
	}, nil
}

func (a *App) Close() error {
	return errors.Join(a.publisher.Close(), a.store.Close())
}

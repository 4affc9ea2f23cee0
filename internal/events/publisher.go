package events

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
	"github.com/sheikh-saqib/room-billing-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/room-billing-ledger/internal/events/nats"
	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	roomevents "github.com/sheikh-saqib/room-billing-ledger/internal/models/events"
)

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(ctx context.Context, event roomevents.RoomEvent) error {
	return nil
}

func (Discard) Close() error {
	return nil
}

// Open returns the publisher selected by cfg.Publisher.
func Open(cfg *config.Config, log logrus.FieldLogger) (interfaces.EventPublisher, error) {
	log = log.WithField("publisher", cfg.Publisher)

	switch cfg.Publisher {
	case config.PublisherNone:
		return Discard{}, nil
	case config.PublisherKafka:
		log.WithField("topic", cfg.KafkaTopic).Info("publishing room events to kafka")
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case config.PublisherNats:
		p, err := nats.Connect(cfg.NatsURL, cfg.NatsSubjectPrefix)
		if err != nil {
			return nil, err
		}
		log.WithField("url", cfg.NatsURL).Info("publishing room events to nats")
		return p, nil
	}
	return nil, fmt.Errorf("unknown publisher %q", cfg.Publisher)
}

var _ interfaces.EventPublisher = Discard{}

package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sheikh-saqib/room-billing-ledger/internal/models/events"
)

const flushTimeout = 2 * time.Second

// Publisher sends room events on <prefix>.<event type>.
type Publisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the NATS server at url. Events are published under prefix.
func Connect(url, prefix string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("roomledger"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &Publisher{conn: conn, prefix: prefix}, nil
}

// Subject builds the subject an event type is published on.
func Subject(prefix string, eventType events.RoomEventType) string {
	if prefix == "" {
		return string(eventType)
	}
	return prefix + "." + string(eventType)
}

// Publish sends the JSON encoded event and waits for the server to flush it.
func (p *Publisher) Publish(ctx context.Context, event events.RoomEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(Subject(p.prefix, event.Type), data); err != nil {
		return err
	}
	// FlushWithContext refuses contexts without a deadline.
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return p.conn.FlushWithContext(ctx)
}

// Close drains pending messages before closing the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

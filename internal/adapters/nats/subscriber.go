package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeLocationUpdates delivers every location update to handler. The
// consumer is ephemeral so each API instance sees every message.
func (s *Subscriber) SubscribeLocationUpdates(ctx context.Context, handler func(ctx context.Context, locationID string) error) error {
	sub, err := s.js.Subscribe(SubjectLocationPrefix+">", func(msg *nats.Msg) {
		id := strings.TrimPrefix(msg.Subject, SubjectLocationPrefix)
		if id == "" {
			id = string(msg.Data)
		}
		if err := handler(ctx, id); err != nil {
			slog.Warn("location update handler failed", "location_id", id, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

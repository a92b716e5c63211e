package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/etxebila/internal/core/domain"
)

// Subjects
const (
	SubjectSessionPrefix  = "search.sessions."
	SubjectLocationPrefix = "locations.updated."
)

// SessionSubject is the subject a settled session is published on.
func SessionSubject(status domain.SessionStatus) string {
	return SubjectSessionPrefix + string(status)
}

// LocationSubject is the subject announcing a changed location.
func LocationSubject(locationID string) string {
	return SubjectLocationPrefix + locationID
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "SEARCH_SESSIONS",
			Subjects:  []string{SubjectSessionPrefix + ">"},
			Retention: nats.LimitsPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "LOCATION_UPDATES",
			Subjects:  []string{SubjectLocationPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSessionEvent records a settled search session.
func (p *Publisher) PublishSessionEvent(ctx context.Context, event *domain.SessionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SessionSubject(event.Status), data, nats.Context(ctx), nats.MsgId(event.SearchID+"."+string(event.Status)))
	return err
}

// PublishLocationUpdated announces that a location's geometry or filter changed.
func (p *Publisher) PublishLocationUpdated(ctx context.Context, locationID string) error {
	_, err := p.js.Publish(LocationSubject(locationID), []byte(locationID), nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

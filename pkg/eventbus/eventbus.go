// Package eventbus publishes trip lifecycle events over NATS JetStream.
// Events are informational fan-out for downstream consumers (notifications,
// realtime, analytics); the engine's canonical state lives in Postgres and is
// never reconstructed from the stream.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/pkg/logger"
)

// Subjects for dispatch events.
const (
	SubjectTripRequested    = "trips.requested"
	SubjectTripStatusChange = "trips.status_changed"
	SubjectPaymentConfirmed = "payments.confirmed"
	SubjectDriverPresence   = "drivers.presence"
)

const streamName = "DISPATCH"

// Event is the envelope for all published events.
type Event struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Publisher publishes dispatch events. A nil *EventBus is a valid no-op
// publisher so the engine can run without NATS in development.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// EventBus wraps a JetStream connection.
type EventBus struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewEventBus connects to NATS and ensures the dispatch stream exists.
func NewEventBus(url string) (*EventBus, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to create jetstream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"trips.>", "payments.>", "drivers.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to create stream: %w", err)
	}

	return &EventBus{conn: conn, js: js}, nil
}

// Publish marshals data into an event envelope and publishes it. Publish
// failures are logged, not propagated: events are best-effort and must not
// roll back committed state.
func (b *EventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	if b == nil {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("unable to marshal event data: %w", err)
	}

	event := Event{
		ID:        uuid.New().String(),
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to marshal event: %w", err)
	}

	if _, err := b.js.Publish(ctx, subject, body); err != nil {
		logger.ErrorContext(ctx, "failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return fmt.Errorf("unable to publish event: %w", err)
	}

	return nil
}

// Close drains the NATS connection.
func (b *EventBus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	b.conn.Close()
}

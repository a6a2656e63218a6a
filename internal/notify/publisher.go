// Package notify announces finished audio items on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const flushTimeout = 5 * time.Second

// Static errors.
var (
	ErrConnectionNil = errors.New("nats connection cannot be nil")
	ErrSubjectEmpty  = errors.New("subject cannot be empty")
)

// NatsPublisher publishes one AudioChunkCreatedEvent per finished item. All
// events of a run share the same workflow ID.
type NatsPublisher struct {
	natsConnection *nats.Conn
	subject        string
	workflowID     string
	tenantID       string
}

// NewNatsPublisher creates a publisher with a fresh run-scoped workflow ID.
func NewNatsPublisher(natsConnection *nats.Conn, subject, tenantID string) (*NatsPublisher, error) {
	if natsConnection == nil {
		return nil, ErrConnectionNil
	}

	if subject == "" {
		return nil, ErrSubjectEmpty
	}

	return &NatsPublisher{
		natsConnection: natsConnection,
		subject:        subject,
		workflowID:     uuid.NewString(),
		tenantID:       tenantID,
	}, nil
}

// WorkflowID identifies the run in every published event.
func (p *NatsPublisher) WorkflowID() string {
	return p.workflowID
}

// PublishAudioCreated sends the event for itemKey and flushes the connection
// so the message is on the wire before the batch moves on.
func (p *NatsPublisher) PublishAudioCreated(ctx context.Context, itemKey, audioKey string) error {
	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: p.workflowID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   p.tenantID,
		},
		AudioKey:   audioKey,
		PageNumber: 0,
		TotalPages: 0,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio created event: %w", err)
	}

	err = p.natsConnection.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", p.subject, err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	err = p.natsConnection.FlushWithContext(flushCtx)
	if err != nil {
		return fmt.Errorf("failed to flush publish of %s: %w", itemKey, err)
	}

	return nil
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/GateLink/internal/app/model"
)

// LinkEventPublisher publishes link lifecycle events to NATS JetStream.
type LinkEventPublisher struct {
	js  nats.JetStreamContext
	now func() time.Time
}

// NewLinkEventPublisher creates a new link event publisher.
func NewLinkEventPublisher(js nats.JetStreamContext) *LinkEventPublisher {
	return &LinkEventPublisher{js: js, now: time.Now}
}

// Publish publishes a lifecycle event for the link. The event id doubles as the JetStream
// message id so retries are de-duplicated by the server.
func (p *LinkEventPublisher) Publish(ctx context.Context, link *model.Link, eventType model.LinkEventType) error {
	event := model.LinkEvent{
		ID:         uuid.New().String(),
		LinkID:     link.ID,
		Token:      link.Token,
		OwnerID:    link.OwnerID,
		Type:       eventType,
		OccurredAt: p.now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(eventType.Subject(), data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}

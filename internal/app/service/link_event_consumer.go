package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/GateLink/internal/app/model"
	apprepository "github.com/sifan077/GateLink/internal/app/repository"
	"go.uber.org/zap"
)

const (
	fetchBatch   = 10
	fetchMaxWait = 5 * time.Second

	fetchRetryDelay = time.Second
)

// EnsureLinkEventStream creates the lifecycle stream and the durable audit consumer when missing.
func EnsureLinkEventStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.LinkEventStreamName); err != nil {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     model.LinkEventStreamName,
			Subjects: []string{model.LinkEventStreamSubjects},
			MaxBytes: model.LinkEventStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := js.ConsumerInfo(model.LinkEventStreamName, model.LinkEventConsumerName); err != nil {
		_, err = js.AddConsumer(model.LinkEventStreamName, &nats.ConsumerConfig{
			Durable:       model.LinkEventConsumerName,
			AckPolicy:     nats.AckExplicitPolicy,
			FilterSubject: model.LinkEventStreamSubjects,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}
	return nil
}

// LinkEventConsumer persists lifecycle events from JetStream into the audit trail.
type LinkEventConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.LinkEventRepository
}

// NewLinkEventConsumer creates a new link event consumer.
func NewLinkEventConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LinkEventRepository) *LinkEventConsumer {
	return &LinkEventConsumer{js: js, logger: logger, repo: repo}
}

// Start subscribes to the durable consumer and processes messages until ctx is cancelled.
func (c *LinkEventConsumer) Start(ctx context.Context) error {
	sub, err := c.js.PullSubscribe(model.LinkEventStreamSubjects, model.LinkEventConsumerName,
		nats.Bind(model.LinkEventStreamName, model.LinkEventConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *LinkEventConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe link event consumer", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("link event consumer stopped")
			return
		default:
		}

		msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(fetchMaxWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Warn("link event consumer subscription closed", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		for _, msg := range msgs {
			if err := c.process(ctx, msg.Data); err != nil {
				c.logger.Error("failed to store link event", zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *LinkEventConsumer) process(ctx context.Context, data []byte) error {
	var event model.LinkEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("unmarshal link event: %w", err)
	}

	if err := c.repo.Create(ctx, &event); err != nil {
		return fmt.Errorf("store link event %s: %w", event.ID, err)
	}

	c.logger.Debug("link event stored",
		zap.String("id", event.ID),
		zap.String("link_id", event.LinkID),
		zap.String("type", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

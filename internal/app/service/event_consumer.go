package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/app/model"
	apprepository "github.com/clipvault/clipvault/internal/app/repository"
)

// LifecycleConsumer drains lifecycle events from JetStream into Postgres.
type LifecycleConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   apprepository.LifecycleEventRepository
}

// NewLifecycleConsumer creates a new lifecycle event consumer.
func NewLifecycleConsumer(js nats.JetStreamContext, logger *zap.Logger, repo apprepository.LifecycleEventRepository) *LifecycleConsumer {
	return &LifecycleConsumer{js: js, logger: logger, repo: repo}
}

// Start ensures the stream and durable consumer exist, then consumes in the
// background until ctx is cancelled.
func (c *LifecycleConsumer) Start(ctx context.Context) error {
	_, err := c.js.StreamInfo(model.LifecycleStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.LifecycleStreamName,
			Subjects: []string{model.LifecycleStreamSubject},
			MaxBytes: model.LifecycleStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.LifecycleStreamName, model.LifecycleConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.LifecycleStreamName, &nats.ConsumerConfig{
			Durable:   model.LifecycleConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.LifecycleStreamSubject, model.LifecycleConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *LifecycleConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("lifecycle consumer stopped")
			return
		}

		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("failed to fetch lifecycle events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.LifecycleEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal lifecycle event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.repo.Create(ctx, &event); err != nil {
				c.logger.Error("failed to store lifecycle event",
					zap.String("id", event.ID),
					zap.String("video_id", event.VideoID),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("lifecycle event stored",
				zap.String("id", event.ID),
				zap.String("video_id", event.VideoID),
				zap.String("action", event.Action),
				zap.Time("timestamp", event.Timestamp),
			)

			msg.Ack()
		}
	}
}

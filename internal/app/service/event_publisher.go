package service

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/clipvault/clipvault/internal/app/model"
)

// LifecyclePublisher publishes lifecycle events to NATS JetStream.
type LifecyclePublisher struct {
	js nats.JetStreamContext
}

// NewLifecyclePublisher creates a new lifecycle event publisher.
func NewLifecyclePublisher(js nats.JetStreamContext) *LifecyclePublisher {
	return &LifecyclePublisher{js: js}
}

// Publish emits one event to the lifecycle stream.
func (p *LifecyclePublisher) Publish(videoID, action, detail string) error {
	event := model.LifecycleEvent{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Action:    action,
		Detail:    detail,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.LifecycleStreamSubject, data)
	return err
}

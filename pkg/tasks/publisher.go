package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/labelhive/labelhive/pkg/models"
)

type TaskPublisher struct {
	publisher message.Publisher
}

// NewTaskPublisher wraps the publisher side of the router's pub/sub.
func NewTaskPublisher(publisher message.Publisher) *TaskPublisher {
	return &TaskPublisher{
		publisher: publisher,
	}
}

func (t *TaskPublisher) Publish(taskType models.TaskTopic, metadata map[string]string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	log.Debugf("Publishing message: %s", p)
	m := message.NewMessage(watermill.NewUUID(), p)
	m.Metadata = message.Metadata(metadata)

	err = t.publisher.Publish(string(taskType), m)
	if err != nil {
		return fmt.Errorf("failed to publish task message: %w", err)
	}

	return nil
}

func (t *TaskPublisher) Close() error {
	err := t.publisher.Close()
	if err != nil {
		return fmt.Errorf("failed to close task publisher: %w", err)
	}

	return nil
}

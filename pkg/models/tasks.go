package models

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

type TaskTopic string

const (
	LabelEventIngestTopic TaskTopic = "label_event_ingest"
	DisputeNotifyTopic    TaskTopic = "dispute_notify"
)

type Task interface {
	Execute(ctx context.Context, event *message.Message) error
	HandleError(err error)
}

type TaskRouter interface {
	Run(ctx context.Context) error
	AddTask(ctx context.Context, name string, taskType TaskTopic, task Task)
	IsRunning() bool
	Close() error
}

type TaskPublisher interface {
	Publish(taskType TaskTopic, metadata map[string]string, payload any) error
	Close() error
}

// LabelEventBatchTask is the payload published to the ingest topic.
type LabelEventBatchTask struct {
	CampaignID string       `json:"campaign_id"`
	Events     []LabelEvent `json:"events"`
}

// DisputeNotifyTask is the payload published to the dispute topic when a
// freshly recomputed consensus turns out disputed.
type DisputeNotifyTask struct {
	CampaignID string          `json:"campaign_id"`
	Consensus  *ConsensusLabel `json:"consensus"`
}

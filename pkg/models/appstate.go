package models

import (
	"context"

	"github.com/labelhive/labelhive/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	LabelEventStore LabelEventStore
	TaskRouter      TaskRouter
	TaskPublisher   TaskPublisher
	Notifier        Notifier
	Config          *config.Config
}

// Notifier posts disputed consensus labels to an external callback.
type Notifier interface {
	NotifyDisputed(ctx context.Context, campaignID string, consensus *ConsensusLabel) error
	Enabled() bool
}

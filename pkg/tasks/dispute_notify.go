package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/labelhive/labelhive/pkg/models"
)

var _ models.Task = &DisputeNotifyTask{}

func NewDisputeNotifyTask(appState *models.AppState) *DisputeNotifyTask {
	return &DisputeNotifyTask{
		BaseTask{
			appState: appState,
		},
	}
}

// DisputeNotifyTask delivers disputed consensus results to the configured
// callback endpoint so a reviewer can be pulled in.
type DisputeNotifyTask struct {
	BaseTask
}

func (dt *DisputeNotifyTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	var task models.DisputeNotifyTask
	err := json.Unmarshal(msg.Payload, &task)
	if err != nil {
		return fmt.Errorf("DisputeNotifyTask unmarshal failed: %w", err)
	}
	if task.Consensus == nil {
		return errors.New("DisputeNotifyTask consensus is empty")
	}

	log.Debugf("DisputeNotifyTask called for campaign %s image %s",
		task.CampaignID, task.Consensus.ImageID)

	err = dt.appState.Notifier.NotifyDisputed(ctx, task.CampaignID, task.Consensus)
	if err != nil {
		return fmt.Errorf("DisputeNotifyTask callback failed: %w", err)
	}

	msg.Ack()

	return nil
}

func (dt *DisputeNotifyTask) HandleError(err error) {
	log.Errorf("DisputeNotifyTask failed: %v", err)
}

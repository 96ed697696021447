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

// Force compiler to validate that our task implements the Task interface.
var _ models.Task = &LabelEventIngestTask{}

func NewLabelEventIngestTask(appState *models.AppState) *LabelEventIngestTask {
	return &LabelEventIngestTask{
		BaseTask{
			appState: appState,
		},
	}
}

// LabelEventIngestTask records a batch of worker label events and recomputes
// consensus for the touched images. Images whose consensus comes out disputed
// are forwarded to the dispute topic.
type LabelEventIngestTask struct {
	BaseTask
}

func (lt *LabelEventIngestTask) Execute(
	ctx context.Context,
	msg *message.Message,
) error {
	ctx, done := context.WithTimeout(ctx, TaskTimeout*time.Second)
	defer done()

	var batch models.LabelEventBatchTask
	err := json.Unmarshal(msg.Payload, &batch)
	if err != nil {
		return fmt.Errorf("LabelEventIngestTask unmarshal failed: %w", err)
	}
	if batch.CampaignID == "" {
		return errors.New("LabelEventIngestTask campaign_id is empty")
	}

	log.Debugf("LabelEventIngestTask called for campaign %s with %d events",
		batch.CampaignID, len(batch.Events))

	err = lt.appState.LabelEventStore.RecordEventBatch(ctx, batch.CampaignID, batch.Events)
	if err != nil {
		// Malformed events are skipped, not fatal. The rest of the batch
		// has already been recorded.
		log.Warnf("LabelEventIngestTask skipped events for campaign %s: %v",
			batch.CampaignID, err)
	}

	err = lt.publishDisputes(ctx, batch.CampaignID, batch.Events)
	if err != nil {
		return fmt.Errorf("LabelEventIngestTask dispute check failed: %w", err)
	}

	msg.Ack()

	return nil
}

// publishDisputes recomputes consensus for each image touched by the batch
// and forwards disputed ones to the dispute topic.
func (lt *LabelEventIngestTask) publishDisputes(
	ctx context.Context,
	campaignID string,
	events []models.LabelEvent,
) error {
	if lt.appState.Notifier == nil || !lt.appState.Notifier.Enabled() {
		return nil
	}

	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if e.ImageID == "" || seen[e.ImageID] {
			continue
		}
		seen[e.ImageID] = true

		consensus, err := lt.appState.LabelEventStore.ConsensusFor(ctx, campaignID, e.ImageID)
		if err != nil {
			if errors.Is(err, models.ErrNoData) {
				continue
			}
			return err
		}
		if !consensus.Disputed {
			continue
		}

		err = lt.appState.TaskPublisher.Publish(
			models.DisputeNotifyTopic,
			map[string]string{"campaign_id": campaignID},
			models.DisputeNotifyTask{
				CampaignID: campaignID,
				Consensus:  consensus,
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (lt *LabelEventIngestTask) HandleError(err error) {
	log.Errorf("LabelEventIngestTask failed: %v", err)
}

package tasks

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/models"
)

var log = internal.GetLogger()

type BaseTask struct {
	appState *models.AppState // nolint: unused
}

func (b *BaseTask) Execute(
	ctx context.Context, // nolint: revive
	msg *message.Message, // nolint: revive
) error {
	return nil
}

func (b *BaseTask) HandleError(err error) {
	log.Errorf("Task HandleError error: %s", err)
}

func Initialize(ctx context.Context, appState *models.AppState, router models.TaskRouter) {
	log.Info("Initializing tasks")

	addTask := func(ctx context.Context, name string, taskType models.TaskTopic, enabled bool, newTask func() models.Task) {
		if enabled {
			task := newTask()
			router.AddTask(ctx, name, taskType, task)
			log.Infof("%s task added to task router", name)
		}
	}

	addTask(
		ctx,
		string(models.LabelEventIngestTopic),
		models.LabelEventIngestTopic,
		true, // Always enabled
		func() models.Task { return NewLabelEventIngestTask(appState) },
	)

	addTask(
		ctx,
		string(models.DisputeNotifyTopic),
		models.DisputeNotifyTopic,
		appState.Notifier != nil && appState.Notifier.Enabled(),
		func() models.Task { return NewDisputeNotifyTask(appState) },
	)
}

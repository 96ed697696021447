package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	wla "github.com/ma-hartma/watermill-logrus-adapter"

	"github.com/labelhive/labelhive/pkg/models"
)

// TODO: Add these to config
const TaskCountThrottle = 50 // messages per second
const MaxQueueRetries = 5
const TaskTimeout = 30 // seconds

var onceRouter sync.Once

// TaskRouter is a wrapper around watermill's Router that adds some
// functionality for managing tasks and handlers.
// All handlers subscribe to a process-local GoChannel pub/sub: labelhive
// deliberately keeps no durable queue, and the store's idempotent event
// recording absorbs redelivery from upstream.
type TaskRouter struct {
	*message.Router
	appState *models.AppState
	logger   watermill.LoggerAdapter
	pubSub   *gochannel.GoChannel
}

// NewTaskRouter creates a new TaskRouter.
func NewTaskRouter(appState *models.AppState) (*TaskRouter, error) {
	var wlog = wla.NewLogrusLogger(log)

	cfg := message.RouterConfig{}
	router, err := message.NewRouter(cfg, wlog)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		// CorrelationID will copy the correlation id from the incoming message's metadata to the produced messages
		middleware.CorrelationID,

		// Throttle limits the number of messages processed per second.
		middleware.NewThrottle(TaskCountThrottle, time.Second).Middleware,

		// Recoverer handles panics from handlers.
		// In this case, it passes them as errors to the Retry middleware.
		middleware.Recoverer,

		// The handler function is retried if it returns an error.
		// After MaxRetries, the message is Nacked and it's up to the PubSub to resend it.
		middleware.Retry{
			MaxRetries:      MaxQueueRetries,
			InitialInterval: 1 * time.Second,
			Multiplier:      0.5,
			Logger:          wlog,
		}.Middleware,
	)

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		wlog,
	)

	return &TaskRouter{
		Router:   router,
		appState: appState,
		logger:   wlog,
		pubSub:   pubSub,
	}, nil
}

// AddTask adds a task handler to the router.
func (tr *TaskRouter) AddTask(_ context.Context, name string, taskType models.TaskTopic, task models.Task) {
	tr.AddNoPublisherHandler(
		name,
		string(taskType),
		tr.pubSub,
		TaskHandler(task),
	)
}

// Publisher returns the publisher side of the router's pub/sub.
func (tr *TaskRouter) Publisher() message.Publisher {
	return tr.pubSub
}

func (tr *TaskRouter) Close() (err error) {
	routerErr := tr.Router.Close()
	defer func() {
		pubSubErr := tr.pubSub.Close()
		if err == nil {
			err = pubSubErr
		}
	}()
	if routerErr != nil {
		err = routerErr
	}
	return err
}

// TaskHandler returns a message handler function for the given task.
// Handlers are NoPublishHandlerFuncs i.e. do not publish messages.
func TaskHandler(task models.Task) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		err := task.Execute(msg.Context(), msg)
		if err != nil {
			task.HandleError(err)
			return err
		}
		return nil
	}
}

func RunTaskRouter(ctx context.Context, appState *models.AppState) {
	// Run once to avoid test situations where the router is initialized multiple times
	onceRouter.Do(func() {
		router, err := NewTaskRouter(appState)
		if err != nil {
			log.Fatalf("failed to create task router: %v", err)
		}

		publisher := NewTaskPublisher(router.Publisher())
		Initialize(ctx, appState, router)

		appState.TaskRouter = router
		appState.TaskPublisher = publisher

		go func() {
			log.Info("running task router")
			err := router.Run(ctx)
			if err != nil {
				log.Fatalf("failed to run task router %v", err)
			}
		}()
	})
}

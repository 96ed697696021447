package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/pkg/auth"
	"github.com/labelhive/labelhive/pkg/labelstore"
	"github.com/labelhive/labelhive/pkg/models"
	"github.com/labelhive/labelhive/pkg/notify"
	"github.com/labelhive/labelhive/pkg/server"
	"github.com/labelhive/labelhive/pkg/tasks"
)

// run is the entrypoint for the labelhive server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring labelhive: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting labelhive server version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV,
// initializes the label event store, the dispute notifier, and the task
// router, and installs the shutdown handler.
func NewAppState(cfg *config.Config) *models.AppState {
	appState := &models.AppState{
		Config: cfg,
	}

	appState.LabelEventStore = labelstore.NewMemoryStore(appState)
	appState.Notifier = notify.NewWebhookNotifier(cfg)
	if appState.Notifier.Enabled() {
		log.Infof("Dispute callback enabled: %s", cfg.Callback.URL)
	} else {
		log.Debug("dispute callback disabled")
	}

	tasks.RunTaskRouter(context.Background(), appState)
	setupSignalHandler(appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg))
		os.Exit(0)
	}
	if dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to dump config: %v", err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

// setupSignalHandler sets up a signal handler to drain the task router and
// close the store on termination
func setupSignalHandler(appState *models.AppState) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if appState.TaskRouter != nil {
			if err := appState.TaskRouter.Close(); err != nil {
				log.Errorf("Error closing task router: %v", err)
			}
		}
		if err := appState.LabelEventStore.Close(); err != nil {
			log.Errorf("Error closing label event store: %v", err)
		}
		os.Exit(0)
	}()
}

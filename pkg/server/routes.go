package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/labelhive/labelhive/pkg/auth"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/labelhive/labelhive/pkg/models"
)

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	router := setupRouter(appState)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", appState.Config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))

	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		router.Use(auth.JWTVerifier(appState.Config))
		router.Use(jwtauth.Authenticator)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Campaign-scoped label aggregation routes
		r.Route("/campaigns/{campaignId}", func(r chi.Router) {
			r.Delete("/", PurgeCampaignHandler(appState))
			r.Route("/events", func(r chi.Router) {
				r.Post("/", CreateLabelEventHandler(appState))
				r.Post("/batch", CreateLabelEventBatchHandler(appState))
			})
			r.Route("/images/{imageId}", func(r chi.Router) {
				r.Get("/events", GetLabelEventsHandler(appState))
				r.Get("/consensus", GetConsensusHandler(appState))
			})
			r.Route("/consensus", func(r chi.Router) {
				r.Get("/", GetConsensusListHandler(appState))
				r.Get("/disputed", GetDisputedHandler(appState))
			})
			r.Get("/workers/reliability", GetWorkerReliabilityHandler(appState))
			r.Post("/decoys", SetDecoysHandler(appState))
		})
		// Stateless candidate-selection routes
		r.Route("/selection", func(r chi.Router) {
			r.Post("/rank", RankSelectionHandler(appState))
			r.Post("/filter", FilterSelectionHandler(appState))
			r.Post("/manifest", CreateManifestHandler(appState))
		})
	})

	return router
}

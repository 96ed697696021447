package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/models"
)

var log = internal.GetLogger()

var validate = validator.New()

const OKResponse = "OK"

// CreateLabelEventHandler records a single worker label event synchronously.
//
// POST /api/v1/campaigns/{campaignId}/events
func CreateLabelEventHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		var event models.LabelEvent
		if err := decodeJSON(r, &event); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(event); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		if err := appState.LabelEventStore.RecordEvent(r.Context(), campaignID, &event); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusCreated)
		if err := encodeJSON(w, event); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// CreateLabelEventBatchHandler accepts a batch of label events and hands it
// to the task queue. The batch is recorded asynchronously; 202 means
// accepted, not recorded.
//
// POST /api/v1/campaigns/{campaignId}/events/batch
func CreateLabelEventBatchHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		var batch models.LabelEventBatchTask
		if err := decodeJSON(r, &batch); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		// If campaign ID is provided in the body, make sure it matches the URL
		if batch.CampaignID != "" && batch.CampaignID != campaignID {
			renderError(
				w,
				fmt.Errorf("campaign ID mismatch: %s != %s", batch.CampaignID, campaignID),
				http.StatusBadRequest,
			)
			return
		}
		batch.CampaignID = campaignID
		if len(batch.Events) == 0 {
			renderError(w, fmt.Errorf("batch is empty"), http.StatusBadRequest)
			return
		}

		err := appState.TaskPublisher.Publish(
			models.LabelEventIngestTopic,
			map[string]string{"campaign_id": campaignID},
			batch,
		)
		if err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(OKResponse))
	}
}

// GetLabelEventsHandler returns the latest event per worker for an image.
//
// GET /api/v1/campaigns/{campaignId}/images/{imageId}/events
func GetLabelEventsHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		imageID := chi.URLParam(r, "imageId")

		events, err := appState.LabelEventStore.EventsFor(r.Context(), campaignID, imageID)
		if err != nil {
			renderStoreError(w, err)
			return
		}

		if err := encodeJSON(w, events); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetConsensusHandler returns the consensus label for a single image.
//
// GET /api/v1/campaigns/{campaignId}/images/{imageId}/consensus
func GetConsensusHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		imageID := chi.URLParam(r, "imageId")

		consensus, err := appState.LabelEventStore.ConsensusFor(r.Context(), campaignID, imageID)
		if err != nil {
			renderStoreError(w, err)
			return
		}

		if err := encodeJSON(w, consensus); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetConsensusListHandler returns consensus for every image with at least
// min_workers distinct workers. min_workers defaults from config. With
// exclude_unreliable=true the listing is re-aggregated without votes from
// workers scoring at or below reliability_threshold; reliability_from names
// the campaigns to score workers over, defaulting to this one.
//
// GET /api/v1/campaigns/{campaignId}/consensus?min_workers=&exclude_unreliable=&reliability_threshold=&reliability_from=
func GetConsensusListHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		minWorkers, err := extractQueryStringValueToInt(r, "min_workers")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if minWorkers <= 0 {
			minWorkers = appState.Config.Consensus.MinWorkers
		}

		var consensus []models.ConsensusLabel
		if r.URL.Query().Get("exclude_unreliable") == "true" {
			threshold, found, err := extractQueryStringValueToFloat(r, "reliability_threshold")
			if err != nil {
				renderError(w, err, http.StatusBadRequest)
				return
			}
			if !found {
				threshold = appState.Config.Consensus.ReliabilityThreshold
			}
			var reliabilityCampaigns []string
			for _, id := range strings.Split(r.URL.Query().Get("reliability_from"), ",") {
				if id != "" {
					reliabilityCampaigns = append(reliabilityCampaigns, id)
				}
			}
			consensus, err = appState.LabelEventStore.ReliableConsensusForAll(
				r.Context(), campaignID, minWorkers, threshold, reliabilityCampaigns,
			)
			if err != nil {
				renderStoreError(w, err)
				return
			}
		} else {
			consensus, err = appState.LabelEventStore.ConsensusForAll(r.Context(), campaignID, minWorkers)
			if err != nil {
				renderStoreError(w, err)
				return
			}
		}

		if err := encodeJSON(w, consensus); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetDisputedHandler returns every disputed consensus for human review.
// threshold defaults from config.
//
// GET /api/v1/campaigns/{campaignId}/consensus/disputed?threshold=
func GetDisputedHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		threshold, found, err := extractQueryStringValueToFloat(r, "threshold")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if !found {
			threshold = appState.Config.Consensus.DisputeThreshold
		}

		disputed, err := appState.LabelEventStore.Disputed(r.Context(), campaignID, threshold)
		if err != nil {
			renderStoreError(w, err)
			return
		}

		if err := encodeJSON(w, disputed); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// GetWorkerReliabilityHandler scores each worker's agreement with settled
// consensus labels. threshold defaults from config.
//
// GET /api/v1/campaigns/{campaignId}/workers/reliability?threshold=
func GetWorkerReliabilityHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		threshold, found, err := extractQueryStringValueToFloat(r, "threshold")
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if !found {
			threshold = appState.Config.Consensus.ReliabilityThreshold
		}

		reliability, err := appState.LabelEventStore.WorkerReliability(r.Context(), campaignID, threshold)
		if err != nil {
			renderStoreError(w, err)
			return
		}

		if err := encodeJSON(w, reliability); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

// SetDecoysHandler registers known-label decoy images for a campaign.
//
// POST /api/v1/campaigns/{campaignId}/decoys
func SetDecoysHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")
		var decoys map[string]string
		if err := decodeJSON(r, &decoys); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if len(decoys) == 0 {
			renderError(w, fmt.Errorf("no decoys provided"), http.StatusBadRequest)
			return
		}

		if err := appState.LabelEventStore.SetDecoys(r.Context(), campaignID, decoys); err != nil {
			renderStoreError(w, err)
			return
		}

		_, _ = w.Write([]byte(OKResponse))
	}
}

// PurgeCampaignHandler hard deletes all events and caches for a campaign.
//
// DELETE /api/v1/campaigns/{campaignId}
func PurgeCampaignHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignId")

		if err := appState.LabelEventStore.PurgeCampaign(r.Context(), campaignID); err != nil {
			renderStoreError(w, err)
			return
		}

		_, _ = w.Write([]byte(OKResponse))
	}
}

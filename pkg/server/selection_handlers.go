package server

import (
	"net/http"

	"github.com/labelhive/labelhive/pkg/manifest"
	"github.com/labelhive/labelhive/pkg/models"
	"github.com/labelhive/labelhive/pkg/selector"
)

// selectionOptions builds selector options from the payload, falling back to
// configured defaults for anything the caller left unset.
func selectionOptions(appState *models.AppState, payload *models.SelectionPayload) *selector.Options {
	cfg := appState.Config.Selector

	metric := payload.Metric
	if metric == "" {
		metric = models.SelectionMetric(cfg.Metric)
	}
	aggregation := payload.Aggregation
	if aggregation == "" {
		aggregation = models.SelectionAggregation(cfg.Aggregation)
	}

	return &selector.Options{
		Metric:      selector.MetricFor(metric),
		Aggregation: aggregation,
		Shards:      cfg.Shards,
	}
}

func renderSelectionResult(w http.ResponseWriter, result *selector.Result) {
	page := models.SelectionResultPage{
		Results:     result.Candidates,
		Skipped:     result.Skipped,
		ResultCount: len(result.Candidates),
	}
	if err := encodeJSON(w, page); err != nil {
		renderError(w, err, http.StatusInternalServerError)
	}
}

// RankSelectionHandler scores the candidate pool against the seed set and
// returns the top K most similar images.
//
// POST /api/v1/selection/rank
func RankSelectionHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.SelectionPayload
		if err := decodeJSON(r, &payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		var result *selector.Result
		var err error
		if payload.Diversify {
			lambda := payload.MMRLambda
			if lambda == 0 {
				lambda = 0.5
			}
			result, err = selector.RankDiverse(
				&payload.Seeds,
				payload.Candidates,
				payload.TopK,
				lambda,
				selectionOptions(appState, &payload),
			)
		} else {
			result, err = selector.Rank(
				&payload.Seeds,
				payload.Candidates,
				payload.TopK,
				selectionOptions(appState, &payload),
			)
		}
		if err != nil {
			renderStoreError(w, err)
			return
		}

		renderSelectionResult(w, result)
	}
}

// FilterSelectionHandler returns every candidate scoring at least the
// payload threshold, in pool order.
//
// POST /api/v1/selection/filter
func FilterSelectionHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.SelectionPayload
		if err := decodeJSON(r, &payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		result, err := selector.Filter(
			&payload.Seeds,
			payload.Candidates,
			payload.Threshold,
			selectionOptions(appState, &payload),
		)
		if err != nil {
			renderStoreError(w, err)
			return
		}

		renderSelectionResult(w, result)
	}
}

// CreateManifestHandler chunks selected images into labelling tasks. The
// default response is a JSON array; ?format=jsonl streams JSON lines for
// direct upload to a labelling service.
//
// POST /api/v1/selection/manifest
func CreateManifestHandler(appState *models.AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload models.ManifestPayload
		if err := decodeJSON(r, &payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}
		if err := validate.Struct(payload); err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		tasks, err := manifest.Build(&payload, &appState.Config.Manifest)
		if err != nil {
			renderError(w, err, http.StatusBadRequest)
			return
		}

		if r.URL.Query().Get("format") == "jsonl" {
			w.Header().Set("Content-Type", "application/jsonl")
			if err := manifest.WriteJSONLines(w, tasks); err != nil {
				renderError(w, err, http.StatusInternalServerError)
			}
			return
		}

		if err := encodeJSON(w, tasks); err != nil {
			renderError(w, err, http.StatusInternalServerError)
			return
		}
	}
}

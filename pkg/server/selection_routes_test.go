package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelhive/labelhive/pkg/models"
)

func selectionPayload() models.SelectionPayload {
	return models.SelectionPayload{
		Seeds: models.SeedSet{
			Name:       "cats",
			Embeddings: []models.Embedding{{1, 0}},
		},
		Candidates: []models.Candidate{
			{ImageID: "a", Embedding: models.Embedding{1, 0}},
			{ImageID: "b", Embedding: models.Embedding{0, 1}},
			{ImageID: "c", Embedding: models.Embedding{0.9, 0.1}},
		},
	}
}

func TestRankSelectionRoute(t *testing.T) {
	payload := selectionPayload()
	payload.TopK = 2

	resp := postJSON(t, testServer.URL+"/api/v1/selection/rank", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	page := new(models.SelectionResultPage)
	err := json.NewDecoder(resp.Body).Decode(page)
	assert.NoError(t, err)
	require.Equal(t, 2, page.ResultCount)
	assert.Equal(t, "a", page.Results[0].ImageID)
	assert.Equal(t, "c", page.Results[1].ImageID)
	assert.InDelta(t, 1.0, page.Results[0].Score, 1e-6)
}

func TestRankSelectionRouteSkipsBadCandidates(t *testing.T) {
	payload := selectionPayload()
	payload.TopK = 10
	payload.Candidates = append(payload.Candidates,
		models.Candidate{ImageID: "short", Embedding: models.Embedding{1}},
	)

	resp := postJSON(t, testServer.URL+"/api/v1/selection/rank", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	page := new(models.SelectionResultPage)
	err := json.NewDecoder(resp.Body).Decode(page)
	assert.NoError(t, err)
	assert.Equal(t, 3, page.ResultCount)
	require.Len(t, page.Skipped, 1)
	assert.Equal(t, "short", page.Skipped[0].ImageID)
}

func TestRankSelectionRouteRejectsMissingSeeds(t *testing.T) {
	payload := selectionPayload()
	payload.Seeds = models.SeedSet{}

	resp := postJSON(t, testServer.URL+"/api/v1/selection/rank", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFilterSelectionRoute(t *testing.T) {
	payload := selectionPayload()
	payload.Threshold = 0.9

	resp := postJSON(t, testServer.URL+"/api/v1/selection/filter", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	page := new(models.SelectionResultPage)
	err := json.NewDecoder(resp.Body).Decode(page)
	assert.NoError(t, err)
	// pool order, not score order
	require.Equal(t, 2, page.ResultCount)
	assert.Equal(t, "a", page.Results[0].ImageID)
	assert.Equal(t, "c", page.Results[1].ImageID)
}

func TestCreateManifestRoute(t *testing.T) {
	payload := models.ManifestPayload{
		ImageURIs:  manifestURIs(45),
		Categories: []string{"cat", "dog"},
		GroupSize:  20,
	}

	resp := postJSON(t, testServer.URL+"/api/v1/selection/manifest", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var tasks []map[string]any
	err := json.NewDecoder(resp.Body).Decode(&tasks)
	assert.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestCreateManifestRouteJSONLines(t *testing.T) {
	payload := models.ManifestPayload{
		ImageURIs:  manifestURIs(3),
		Categories: []string{"cat", "dog"},
		GroupSize:  1,
	}

	resp := postJSON(t, testServer.URL+"/api/v1/selection/manifest?format=jsonl", payload)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/jsonl", resp.Header.Get("Content-Type"))

	var lines int
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		assert.True(t, json.Valid(line))
		lines++
	}
	assert.NoError(t, scanner.Err())
	assert.Equal(t, 3, lines)
}

func manifestURIs(n int) []string {
	uris := make([]string, n)
	for i := range uris {
		uris[i] = "s3://images/img-" + string(rune('a'+i%26)) + ".jpg"
	}
	return uris
}

package testutils

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/labelhive/labelhive/pkg/models"
)

var fixtureLabels = []string{"cat", "dog", "bird", "other"}

// GenerateLabelEvents fabricates a plausible stream of worker submissions:
// every worker labels every image, with a slight bias so most images end up
// with a clear majority and a few stay contested.
func GenerateLabelEvents(imageCount, workerCount int) []models.LabelEvent {
	images := make([]string, imageCount)
	for i := range images {
		images[i] = "s3://fixtures/" + gofakeit.UUID() + ".jpg"
	}
	workers := make([]string, workerCount)
	for i := range workers {
		workers[i] = gofakeit.Username()
	}

	now := time.Now()
	events := make([]models.LabelEvent, 0, imageCount*workerCount)
	for i, image := range images {
		majority := fixtureLabels[i%len(fixtureLabels)]
		for j, worker := range workers {
			label := majority
			if gofakeit.Number(0, 9) < 2 {
				label = gofakeit.RandomString(fixtureLabels)
			}
			events = append(events, models.LabelEvent{
				UUID:       uuid.New(),
				ImageID:    image,
				WorkerID:   worker,
				Label:      label,
				Confidence: gofakeit.Float64Range(0.5, 1.0),
				Timestamp:  now.Add(time.Duration(i*workerCount+j) * time.Second),
			})
		}
	}

	return events
}

// GenerateEmbeddings fabricates unit-ish embedding vectors of the given width.
func GenerateEmbeddings(count, width int) []models.Embedding {
	embeddings := make([]models.Embedding, count)
	for i := range embeddings {
		v := make(models.Embedding, width)
		for j := range v {
			v[j] = float32(gofakeit.Float64Range(-1.0, 1.0))
		}
		embeddings[i] = v
	}
	return embeddings
}

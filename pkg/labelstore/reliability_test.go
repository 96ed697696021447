package labelstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/pkg/models"
)

func TestWorkerReliability(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("DisagreeingWorkerIsUnreliable", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})

		// Worker a disagrees with the certain majority on 2 of 10 images.
		for i := 0; i < 10; i++ {
			imageID := fmt.Sprintf("img-%02d", i)
			labelA := "cat"
			if i < 2 {
				labelA = "dog"
			}
			events := []models.LabelEvent{
				event(imageID, "a", labelA, base),
				event(imageID, "b", "cat", base.Add(time.Second)),
				event(imageID, "c", "cat", base.Add(2*time.Second)),
			}
			require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))
		}

		reliability, err := store.WorkerReliability(testCtx, "campaign", 0.8)
		require.NoError(t, err)
		require.Len(t, reliability, 3)

		byWorker := map[string]models.WorkerReliability{}
		for _, r := range reliability {
			byWorker[r.WorkerID] = r
		}

		assert.InDelta(t, 0.8, byWorker["a"].Agreement, 1e-6)
		// 0.8 is not strictly greater than the 0.8 threshold.
		assert.False(t, byWorker["a"].Reliable)
		assert.True(t, byWorker["b"].Reliable)
		assert.True(t, byWorker["c"].Reliable)
		assert.Equal(t, 10, byWorker["a"].Scored)
	})

	t.Run("UncertainImagesAreNotScored", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})

		// A 1-1 split is not certain, so nobody gets scored on it.
		events := []models.LabelEvent{
			event("img", "a", "cat", base),
			event("img", "b", "dog", base.Add(time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		reliability, err := store.WorkerReliability(testCtx, "campaign", 0.8)
		require.NoError(t, err)
		assert.Empty(t, reliability)
	})

	t.Run("DecoysOverrideMajority", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})
		require.NoError(t, store.SetDecoys(testCtx, "campaign",
			map[string]string{"decoy-img": "dog"}))

		// The crowd unanimously labels the decoy wrong.
		events := []models.LabelEvent{
			event("decoy-img", "a", "cat", base),
			event("decoy-img", "b", "cat", base.Add(time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		reliability, err := store.WorkerReliability(testCtx, "campaign", 0.5)
		require.NoError(t, err)
		require.Len(t, reliability, 2)
		for _, r := range reliability {
			assert.Equal(t, 0.0, r.Agreement)
			assert.False(t, r.Reliable)
		}
	})
}

func TestReliableConsensusForAll(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ExcludedVotesFlipAContestedImage", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		require.NoError(t, store.SetDecoys(testCtx, "campaign", map[string]string{
			"decoy-1": "cat",
			"decoy-2": "cat",
			"decoy-3": "cat",
		}))

		// Worker a fails every decoy; b and c pass. Worker d only ever
		// labels the contested image, so the scoring never sees them.
		var events []models.LabelEvent
		for _, decoy := range []string{"decoy-1", "decoy-2", "decoy-3"} {
			events = append(events,
				event(decoy, "a", "dog", base),
				event(decoy, "b", "cat", base.Add(time.Second)),
				event(decoy, "c", "cat", base.Add(2*time.Second)),
			)
		}
		events = append(events,
			event("contested", "a", "dog", base),
			event("contested", "d", "dog", base.Add(time.Second)),
			event("contested", "b", "cat", base.Add(2*time.Second)),
			event("contested", "c", "cat", base.Add(3*time.Second)),
		)
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		// With every vote counted the contested image is a 2-2 tie and the
		// earliest-submitted label wins.
		all, err := store.ConsensusForAll(testCtx, "campaign", 2)
		require.NoError(t, err)
		assert.Equal(t, "dog", labelFor(t, all, "contested"))

		reliable, err := store.ReliableConsensusForAll(testCtx, "campaign", 2, 0.5, nil)
		require.NoError(t, err)
		require.Len(t, reliable, 4)
		// a's vote is gone, d's unscored vote survives: cat wins 2-1.
		assert.Equal(t, "cat", labelFor(t, reliable, "contested"))
	})

	t.Run("ImagesThinnedBelowMinWorkersAreOmitted", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		require.NoError(t, store.SetDecoys(testCtx, "campaign",
			map[string]string{"decoy": "cat"}))

		events := []models.LabelEvent{
			event("decoy", "a", "dog", base),
			event("decoy", "b", "cat", base.Add(time.Second)),
			event("decoy", "c", "cat", base.Add(2*time.Second)),
			event("thin", "a", "dog", base),
			event("thin", "b", "cat", base.Add(time.Second)),
			event("full", "a", "dog", base),
			event("full", "b", "cat", base.Add(time.Second)),
			event("full", "c", "cat", base.Add(2*time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		// thin keeps a single worker once a is dropped and falls below
		// min_workers; decoy and full keep two and stay.
		reliable, err := store.ReliableConsensusForAll(testCtx, "campaign", 2, 0.5, nil)
		require.NoError(t, err)
		require.Len(t, reliable, 2)
		assert.Equal(t, "cat", labelFor(t, reliable, "decoy"))
		assert.Equal(t, "cat", labelFor(t, reliable, "full"))
	})

	t.Run("ReliabilityScoredOverAPriorCampaign", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})

		// In the pilot campaign worker a disagreed with a certain majority
		// on every image.
		var pilot []models.LabelEvent
		for i := 0; i < 5; i++ {
			imageID := fmt.Sprintf("pilot-%02d", i)
			pilot = append(pilot,
				event(imageID, "a", "dog", base),
				event(imageID, "b", "cat", base.Add(time.Second)),
				event(imageID, "c", "cat", base.Add(2*time.Second)),
			)
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "pilot", pilot))

		// The new campaign alone cannot tell a and b apart: its only image
		// is a 1-1 tie, which scores nobody.
		events := []models.LabelEvent{
			event("img", "a", "dog", base),
			event("img", "b", "cat", base.Add(time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		selfScored, err := store.ReliableConsensusForAll(testCtx, "campaign", 1, 0.5, nil)
		require.NoError(t, err)
		assert.Equal(t, "dog", labelFor(t, selfScored, "img"))

		priorScored, err := store.ReliableConsensusForAll(
			testCtx, "campaign", 1, 0.5, []string{"pilot"})
		require.NoError(t, err)
		assert.Equal(t, "cat", labelFor(t, priorScored, "img"))
	})
}

func labelFor(t *testing.T, consensus []models.ConsensusLabel, imageID string) string {
	t.Helper()
	for _, c := range consensus {
		if c.ImageID == imageID {
			return c.Label
		}
	}
	t.Fatalf("no consensus for image %s", imageID)
	return ""
}

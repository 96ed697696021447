package labelstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/pkg/models"
)

var testCtx = context.Background()

func testStore(consensus config.ConsensusConfig) *MemoryStore {
	if consensus.MinVotes == 0 {
		consensus.MinVotes = 2
	}
	if consensus.MinVoteProportion == 0 {
		consensus.MinVoteProportion = 0.5
	}
	if consensus.DisputeThreshold == 0 {
		consensus.DisputeThreshold = 0.7
	}
	appState := &models.AppState{
		Config: &config.Config{Consensus: consensus},
	}
	return NewMemoryStore(appState)
}

func event(imageID, workerID, label string, ts time.Time) models.LabelEvent {
	return models.LabelEvent{
		ImageID:   imageID,
		WorkerID:  workerID,
		Label:     label,
		Timestamp: ts,
	}
}

func TestConsensusFor(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("MajorityWins", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})
		events := []models.LabelEvent{
			event("x", "w1", "cat", base),
			event("x", "w2", "cat", base.Add(time.Second)),
			event("x", "w3", "dog", base.Add(2*time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)

		assert.Equal(t, "cat", consensus.Label)
		assert.InDelta(t, 2.0/3.0, consensus.Agreement, 1e-6)
		assert.Equal(t, 3, consensus.Workers)
		assert.False(t, consensus.Disputed)
	})

	t.Run("DisputedAtHigherThreshold", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.7})
		events := []models.LabelEvent{
			event("x", "w1", "cat", base),
			event("x", "w2", "cat", base.Add(time.Second)),
			event("x", "w3", "dog", base.Add(2*time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.True(t, consensus.Disputed)
	})

	t.Run("UnanimousAgreementIsOne", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		events := []models.LabelEvent{
			event("x", "w1", "cat", base),
			event("x", "w2", "cat", base.Add(time.Second)),
		}
		require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, 1.0, consensus.Agreement)
		assert.False(t, consensus.Disputed)
	})

	t.Run("TieIsDeterministic", func(t *testing.T) {
		// A 1-1 split goes to the first-submitted label, every time.
		for i := 0; i < 20; i++ {
			store := testStore(config.ConsensusConfig{DisputeThreshold: 0.7})
			events := []models.LabelEvent{
				event("x", "w1", "cat", base),
				event("x", "w2", "dog", base.Add(time.Second)),
			}
			require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

			consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
			require.NoError(t, err)
			assert.Equal(t, "cat", consensus.Label)
			assert.Equal(t, 0.5, consensus.Agreement)
			assert.True(t, consensus.Disputed)
		}
	})

	t.Run("NoDataError", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		_, err := store.ConsensusFor(testCtx, "campaign", "never-labelled")
		assert.ErrorIs(t, err, models.ErrNoData)
	})

	t.Run("RecomputedAfterNewEvent", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "cat", Timestamp: base}))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, "cat", consensus.Label)
		assert.Equal(t, 1, consensus.Workers)

		for _, w := range []string{"w2", "w3"} {
			require.NoError(t, store.RecordEvent(testCtx, "campaign",
				&models.LabelEvent{ImageID: "x", WorkerID: w, Label: "dog",
					Timestamp: base.Add(time.Minute)}))
		}

		consensus, err = store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, "dog", consensus.Label)
		assert.Equal(t, 3, consensus.Workers)
	})
}

func TestWorkerRetractions(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("LaterEventSupersedes", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "cat", Timestamp: base}))
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "dog",
				Timestamp: base.Add(time.Minute)}))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		// Only the later event counts, never a blend of both.
		assert.Equal(t, "dog", consensus.Label)
		assert.Equal(t, 1, consensus.Workers)
		assert.Equal(t, 1.0, consensus.Agreement)
	})

	t.Run("OutOfOrderRedeliveryIsIgnored", func(t *testing.T) {
		// The retraction arrives before the original: timestamp ordering,
		// not arrival order, decides.
		store := testStore(config.ConsensusConfig{})
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "dog",
				Timestamp: base.Add(time.Minute)}))
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "cat", Timestamp: base}))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, "dog", consensus.Label)
	})

	t.Run("DuplicateDeliveryIsIdempotent", func(t *testing.T) {
		store := testStore(config.ConsensusConfig{})
		ev := models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "cat", Timestamp: base}
		require.NoError(t, store.RecordEvent(testCtx, "campaign", &ev))
		require.NoError(t, store.RecordEvent(testCtx, "campaign", &ev))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, 1, consensus.Workers)
		assert.Equal(t, 1.0, consensus.Agreement)
	})

	t.Run("StaleRedeliveryNeverShiftsTheTieBreak", func(t *testing.T) {
		// A dropped stale event must leave every consensus input, the
		// earliest-first-submitted ranks included, exactly as it was: the
		// winner may only change when a vote changes.
		store := testStore(config.ConsensusConfig{})
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "dog",
				Timestamp: base.Add(2 * time.Minute)}))
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w2", Label: "cat",
				Timestamp: base.Add(3 * time.Minute)}))

		consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
		require.NoError(t, err)
		assert.Equal(t, "dog", consensus.Label, "first-submitted label wins the tie")

		// Stale redelivery for w2 and an idempotent duplicate for w1: the
		// latest-per-worker set is unchanged, so the winner must be too.
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w2", Label: "cat",
				Timestamp: base.Add(time.Minute)}))
		require.NoError(t, store.RecordEvent(testCtx, "campaign",
			&models.LabelEvent{ImageID: "x", WorkerID: "w1", Label: "dog",
				Timestamp: base.Add(2 * time.Minute)}))

		for i := 0; i < 10; i++ {
			consensus, err = store.ConsensusFor(testCtx, "campaign", "x")
			require.NoError(t, err)
			assert.Equal(t, "dog", consensus.Label, "winner flipped without any vote change")
			assert.Equal(t, 2, consensus.Workers)
		}
	})
}

func TestConsensusForAll(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})

	events := []models.LabelEvent{
		event("multi", "w1", "cat", base),
		event("multi", "w2", "cat", base.Add(time.Second)),
		// Two events, one worker: below a minWorkers floor of 2.
		event("single", "w1", "dog", base),
		event("single", "w1", "dog", base.Add(time.Hour)),
	}
	require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

	all, err := store.ConsensusForAll(testCtx, "campaign", 2)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "multi", all[0].ImageID)

	all, err = store.ConsensusForAll(testCtx, "campaign", 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDisputed(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	store := testStore(config.ConsensusConfig{DisputeThreshold: 0.5})

	events := []models.LabelEvent{
		event("agreed", "w1", "cat", base),
		event("agreed", "w2", "cat", base.Add(time.Second)),
		event("split", "w1", "cat", base),
		event("split", "w2", "dog", base.Add(time.Second)),
		event("mostly", "w1", "cat", base),
		event("mostly", "w2", "cat", base.Add(time.Second)),
		event("mostly", "w3", "dog", base.Add(2*time.Second)),
	}
	require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

	disputed, err := store.Disputed(testCtx, "campaign", 0.7)
	require.NoError(t, err)
	require.Len(t, disputed, 2)
	assert.Equal(t, "mostly", disputed[0].ImageID)
	assert.Equal(t, "split", disputed[1].ImageID)
	for _, d := range disputed {
		assert.True(t, d.Disputed)
	}

	// A tie stays disputed even when agreement clears the threshold.
	disputed, err = store.Disputed(testCtx, "campaign", 0.4)
	require.NoError(t, err)
	require.Len(t, disputed, 1)
	assert.Equal(t, "split", disputed[0].ImageID)
}

func TestWeightedVotes(t *testing.T) {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	store := testStore(config.ConsensusConfig{
		DisputeThreshold: 0.5,
		WeightedVotes:    true,
	})

	// Two low-confidence cat votes against one confident dog vote.
	events := []models.LabelEvent{
		{ImageID: "x", WorkerID: "w1", Label: "cat", Confidence: 0.3, Timestamp: base},
		{ImageID: "x", WorkerID: "w2", Label: "cat", Confidence: 0.3, Timestamp: base.Add(time.Second)},
		{ImageID: "x", WorkerID: "w3", Label: "dog", Confidence: 0.9, Timestamp: base.Add(2 * time.Second)},
	}
	require.NoError(t, store.RecordEventBatch(testCtx, "campaign", events))

	consensus, err := store.ConsensusFor(testCtx, "campaign", "x")
	require.NoError(t, err)
	assert.Equal(t, "dog", consensus.Label)
	assert.InDelta(t, 0.9/1.5, consensus.Agreement, 1e-6)
}

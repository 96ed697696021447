package labelstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/models"
)

var log = internal.GetLogger()

var _ models.LabelEventStore = &MemoryStore{}

// NewMemoryStore returns an in-memory LabelEventStore configured from the
// app config. All state is process-local; callers needing durability feed
// the store from their own event log.
func NewMemoryStore(appState *models.AppState) *MemoryStore {
	cfg := appState.Config.Consensus
	weigher := UnitVotes
	if cfg.WeightedVotes {
		weigher = ConfidenceWeightedVotes
	}
	return &MemoryStore{
		cfg:       cfg,
		weigher:   weigher,
		campaigns: make(map[string]*campaignState),
	}
}

// RecordEvent appends a label event. A prior event from the same worker for
// the same image is superseded when the new event's timestamp is not older;
// stale redeliveries are dropped, which makes at-least-once delivery
// idempotent.
func (s *MemoryStore) RecordEvent(
	_ context.Context,
	campaignID string,
	event *models.LabelEvent,
) error {
	if err := validateEvent(campaignID, event); err != nil {
		return err
	}

	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.recordLocked(event)

	return nil
}

// RecordEventBatch records a batch of events. Bad events are skipped and
// reported via the joined error; they never abort the rest of the batch.
func (s *MemoryStore) RecordEventBatch(
	ctx context.Context,
	campaignID string,
	events []models.LabelEvent,
) error {
	var errs []error
	for i := range events {
		if err := s.RecordEvent(ctx, campaignID, &events[i]); err != nil {
			log.Warnf("skipping bad label event in batch: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConsensusFor deterministically recomputes the consensus label for an image
// from its current events. Recomputation is lazy: results are cached until
// the image's event set changes.
func (s *MemoryStore) ConsensusFor(
	_ context.Context,
	campaignID, imageID string,
) (*models.ConsensusLabel, error) {
	c := s.campaign(campaignID)

	c.mu.RLock()
	if cached, ok := c.consensus[imageID]; ok {
		c.mu.RUnlock()
		return cached.label, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, err := c.consensusLocked(imageID, &s.cfg, s.weigher)
	if err != nil {
		return nil, err
	}
	return cached.label, nil
}

// ConsensusForAll returns consensus for every image with at least minWorkers
// distinct contributing workers. Images below the floor are omitted:
// insufficient data and low-confidence data are distinct signals.
func (s *MemoryStore) ConsensusForAll(
	_ context.Context,
	campaignID string,
	minWorkers int,
) ([]models.ConsensusLabel, error) {
	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]models.ConsensusLabel, 0, len(c.events))
	for imageID, workers := range c.events {
		if len(workers) < minWorkers {
			continue
		}
		cached, err := c.consensusLocked(imageID, &s.cfg, s.weigher)
		if err != nil {
			return nil, err
		}
		results = append(results, *cached.label)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ImageID < results[j].ImageID
	})

	return results, nil
}

// Disputed returns the consensus of every image whose agreement score falls
// below threshold or whose top two labels tie, for human review.
func (s *MemoryStore) Disputed(
	_ context.Context,
	campaignID string,
	threshold float64,
) ([]models.ConsensusLabel, error) {
	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	var results []models.ConsensusLabel
	for imageID := range c.events {
		cached, err := c.consensusLocked(imageID, &s.cfg, s.weigher)
		if err != nil {
			return nil, err
		}
		if cached.tied || cached.label.Agreement < threshold {
			disputed := *cached.label
			disputed.Disputed = true
			results = append(results, disputed)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ImageID < results[j].ImageID
	})

	return results, nil
}

// SetDecoys registers known-label decoy images for a campaign. Workers are
// scored against the decoy label regardless of the majority outcome.
func (s *MemoryStore) SetDecoys(
	_ context.Context,
	campaignID string,
	decoys map[string]string,
) error {
	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	for imageID, label := range decoys {
		c.decoys[imageID] = label
	}

	return nil
}

// EventsFor returns the latest event per worker for an image, ordered by
// worker ID.
func (s *MemoryStore) EventsFor(
	_ context.Context,
	campaignID, imageID string,
) ([]models.LabelEvent, error) {
	c := s.campaign(campaignID)

	c.mu.RLock()
	defer c.mu.RUnlock()

	workers, ok := c.events[imageID]
	if !ok || len(workers) == 0 {
		return nil, models.NewNotFoundError(fmt.Sprintf("label events for image %q", imageID))
	}

	events := make([]models.LabelEvent, 0, len(workers))
	for _, ev := range workers {
		events = append(events, ev)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].WorkerID < events[j].WorkerID
	})

	return events, nil
}

// PurgeCampaign hard deletes all events, decoys and cached consensus for a
// campaign.
func (s *MemoryStore) PurgeCampaign(_ context.Context, campaignID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.campaigns, campaignID)

	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// campaign returns the state for a campaign, creating it if needed.
func (s *MemoryStore) campaign(campaignID string) *campaignState {
	s.mu.RLock()
	c, ok := s.campaigns[campaignID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.campaigns[campaignID]; ok {
		return c
	}
	c = newCampaignState()
	s.campaigns[campaignID] = c
	return c
}

func validateEvent(campaignID string, event *models.LabelEvent) error {
	if campaignID == "" {
		return errors.New("label event campaign ID is empty")
	}
	if event == nil {
		return errors.New("label event is nil")
	}
	if event.ImageID == "" || event.WorkerID == "" || event.Label == "" {
		return fmt.Errorf(
			"label event for image %q worker %q is missing required fields",
			event.ImageID, event.WorkerID,
		)
	}
	if event.UUID == uuid.Nil {
		event.UUID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return nil
}

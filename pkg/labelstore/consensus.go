package labelstore

import (
	"sync"
	"time"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/pkg/models"
)

// VoteWeigher maps a label event to its vote weight. Unweighted majority is
// the default because it is the easiest to reason about and defend when
// labelling quality is reviewed.
type VoteWeigher func(event *models.LabelEvent) float64

// UnitVotes counts every worker's vote as 1.
func UnitVotes(_ *models.LabelEvent) float64 {
	return 1
}

// ConfidenceWeightedVotes weighs a vote by the worker's self-reported
// confidence. Events without a confidence count as a full vote.
func ConfidenceWeightedVotes(event *models.LabelEvent) float64 {
	if event.Confidence > 0 {
		return event.Confidence
	}
	return 1
}

// MemoryStore is an in-memory LabelEventStore. The event log is the source
// of truth; consensus labels are derived wholesale from it and cached until
// the next write to the same image.
type MemoryStore struct {
	cfg     config.ConsensusConfig
	weigher VoteWeigher

	mu        sync.RWMutex
	campaigns map[string]*campaignState
}

// labelRank records when a label value was first submitted for an image.
// Used to break vote-count ties deterministically.
type labelRank struct {
	ts  time.Time
	seq uint64
}

func (r labelRank) before(other labelRank) bool {
	if !r.ts.Equal(other.ts) {
		return r.ts.Before(other.ts)
	}
	return r.seq < other.seq
}

type cachedConsensus struct {
	label *models.ConsensusLabel
	// tied reports that the top two labels had equal vote weight. A tie is
	// disputed at any threshold.
	tied bool
}

type campaignState struct {
	mu sync.RWMutex
	// events holds the latest event per (image, worker).
	events map[string]map[string]models.LabelEvent
	// firstSeen holds, per image, the first submission of each label value.
	firstSeen map[string]map[string]labelRank
	// consensus is the lazy per-image cache, invalidated by recordLocked.
	consensus map[string]cachedConsensus
	decoys    map[string]string
	arrivals  uint64
}

func newCampaignState() *campaignState {
	return &campaignState{
		events:    make(map[string]map[string]models.LabelEvent),
		firstSeen: make(map[string]map[string]labelRank),
		consensus: make(map[string]cachedConsensus),
		decoys:    make(map[string]string),
	}
}

// recordLocked applies one event to the campaign state. Caller holds the
// write lock.
func (c *campaignState) recordLocked(event *models.LabelEvent) {
	c.arrivals++

	workers, ok := c.events[event.ImageID]
	if !ok {
		workers = make(map[string]models.LabelEvent)
		c.events[event.ImageID] = workers
	}
	if prior, ok := workers[event.WorkerID]; ok && prior.Timestamp.After(event.Timestamp) {
		// Out-of-order redelivery of an already superseded event. Dropped
		// before it can touch the tie-break ranks: a dropped event must
		// leave every consensus input exactly as it found it.
		log.Debugf(
			"dropping stale label event for image %s worker %s",
			event.ImageID, event.WorkerID,
		)
		return
	}

	ranks, ok := c.firstSeen[event.ImageID]
	if !ok {
		ranks = make(map[string]labelRank)
		c.firstSeen[event.ImageID] = ranks
	}
	rank := labelRank{ts: event.Timestamp, seq: c.arrivals}
	if existing, ok := ranks[event.Label]; !ok || rank.before(existing) {
		ranks[event.Label] = rank
	}

	workers[event.WorkerID] = *event

	delete(c.consensus, event.ImageID)
}

// consensusLocked returns the cached consensus for an image, computing and
// caching it if needed. Caller holds the write lock.
func (c *campaignState) consensusLocked(
	imageID string,
	cfg *config.ConsensusConfig,
	weigher VoteWeigher,
) (cachedConsensus, error) {
	if cached, ok := c.consensus[imageID]; ok {
		return cached, nil
	}

	workers := c.events[imageID]
	if len(workers) == 0 {
		return cachedConsensus{}, models.NewNoDataError(imageID)
	}

	cached := computeConsensus(imageID, workers, c.firstSeen[imageID], cfg, weigher)
	c.consensus[imageID] = cached

	return cached, nil
}

// computeConsensus derives a consensus label from the latest event per
// worker. Pure: identical inputs always produce the identical result.
func computeConsensus(
	imageID string,
	workers map[string]models.LabelEvent,
	firstSeen map[string]labelRank,
	cfg *config.ConsensusConfig,
	weigher VoteWeigher,
) cachedConsensus {
	weights := make(map[string]float64, len(workers))
	counts := make(map[string]int, len(workers))
	var totalWeight float64
	for _, ev := range workers {
		ev := ev
		w := weigher(&ev)
		weights[ev.Label] += w
		counts[ev.Label]++
		totalWeight += w
	}

	// Winner has the most vote weight; ties go to the label first
	// submitted, so repeated runs are reproducible.
	var winner string
	var winnerWeight float64
	tied := false
	for label, weight := range weights {
		switch {
		case winner == "" || weight > winnerWeight:
			winner = label
			winnerWeight = weight
			tied = false
		case weight == winnerWeight:
			tied = true
			if rankBefore(firstSeen, label, winner) {
				winner = label
			}
		}
	}

	agreement := winnerWeight / totalWeight

	winnerCount := counts[winner]
	certain := winnerCount >= cfg.MinVotes &&
		float64(winnerCount) > cfg.MinVoteProportion*float64(len(workers))

	return cachedConsensus{
		label: &models.ConsensusLabel{
			ImageID:   imageID,
			Label:     winner,
			Agreement: agreement,
			Workers:   len(workers),
			Disputed:  tied || agreement < cfg.DisputeThreshold,
			Certain:   certain,
		},
		tied: tied,
	}
}

func rankBefore(firstSeen map[string]labelRank, a, b string) bool {
	ra, okA := firstSeen[a]
	rb, okB := firstSeen[b]
	if okA && okB {
		if ra.before(rb) {
			return true
		}
		if rb.before(ra) {
			return false
		}
	}
	// Identical ranks should not happen; fall back to lexical order so the
	// outcome is still deterministic.
	return a < b
}

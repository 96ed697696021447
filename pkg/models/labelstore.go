package models

import (
	"context"
)

// LabelEventStore interface
//
// The store is the only mutable shared resource in the system. Writes for an
// image are serialized; consensus reads are pure functions of the recorded
// events at call time and are safe to call repeatedly.
type LabelEventStore interface {
	// RecordEvent appends a label event, superseding any prior event from
	// the same worker for the same image when the new event's timestamp is
	// not older. Invalidates the image's cached consensus.
	RecordEvent(ctx context.Context, campaignID string, event *LabelEvent) error
	// RecordEventBatch records a batch of events. A bad event is skipped
	// and reported; it does not abort the batch.
	RecordEventBatch(ctx context.Context, campaignID string, events []LabelEvent) error
	// ConsensusFor recomputes the consensus label for an image from its
	// current events. Returns a NoDataError if the image has no events.
	ConsensusFor(ctx context.Context, campaignID, imageID string) (*ConsensusLabel, error)
	// ConsensusForAll returns consensus for every image with at least
	// minWorkers distinct contributing workers. Images below the floor are
	// omitted, not returned as low-confidence.
	ConsensusForAll(ctx context.Context, campaignID string, minWorkers int) ([]ConsensusLabel, error)
	// Disputed returns every consensus whose agreement score is below
	// threshold, or whose top two labels tie, for human review.
	Disputed(ctx context.Context, campaignID string, threshold float64) ([]ConsensusLabel, error)
	// ReliableConsensusForAll re-aggregates the campaign with unreliable
	// workers' votes excluded. Reliability is scored over
	// reliabilityCampaigns, or over the campaign itself when empty; workers
	// the scoring never saw keep their votes. Images left with fewer than
	// minWorkers contributing workers are omitted.
	ReliableConsensusForAll(ctx context.Context, campaignID string, minWorkers int, reliabilityThreshold float64, reliabilityCampaigns []string) ([]ConsensusLabel, error)
	// WorkerReliability scores each worker's agreement with certain
	// consensuses and decoy labels. threshold is the minimum agreement
	// rate (strictly greater than) to call a worker reliable.
	WorkerReliability(ctx context.Context, campaignID string, threshold float64) ([]WorkerReliability, error)
	// SetDecoys registers known-label decoy images for a campaign. Decoy
	// labels take precedence over majority labels when scoring workers.
	SetDecoys(ctx context.Context, campaignID string, decoys map[string]string) error
	// EventsFor returns the latest event per worker for an image.
	EventsFor(ctx context.Context, campaignID, imageID string) ([]LabelEvent, error)
	// PurgeCampaign hard deletes all events and caches for a campaign.
	PurgeCampaign(ctx context.Context, campaignID string) error
	// Close is called when the application is shutting down.
	Close() error
}

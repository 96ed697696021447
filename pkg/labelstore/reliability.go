package labelstore

import (
	"context"
	"sort"

	"github.com/labelhive/labelhive/pkg/models"
)

// WorkerReliability scores each worker's agreement with the majority over
// images whose consensus is certain. Decoy images are scored against their
// known label instead, so reliability can be assessed even when the crowd is
// wrong. threshold is the minimum agreement rate (strictly greater than) to
// call a worker reliable.
func (s *MemoryStore) WorkerReliability(
	_ context.Context,
	campaignID string,
	threshold float64,
) ([]models.WorkerReliability, error) {
	agreements := make(map[string][]int)
	if err := s.collectAgreements(campaignID, agreements); err != nil {
		return nil, err
	}

	results := make([]models.WorkerReliability, 0, len(agreements))
	for workerID, scores := range agreements {
		agreement := meanAgreement(scores)
		results = append(results, models.WorkerReliability{
			WorkerID:  workerID,
			Agreement: agreement,
			Scored:    len(scores),
			Reliable:  agreement > threshold,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].WorkerID < results[j].WorkerID
	})

	return results, nil
}

// ReliableConsensusForAll re-aggregates a campaign's consensus after dropping
// votes from workers whose agreement rate is not above threshold. Reliability
// is scored over reliabilityCampaigns, so a finished campaign can vouch for
// (or disqualify) workers in the next one; when empty, the campaign scores
// itself. Workers the scoring never saw keep their votes: absence of evidence
// is not unreliability.
func (s *MemoryStore) ReliableConsensusForAll(
	_ context.Context,
	campaignID string,
	minWorkers int,
	threshold float64,
	reliabilityCampaigns []string,
) ([]models.ConsensusLabel, error) {
	if len(reliabilityCampaigns) == 0 {
		reliabilityCampaigns = []string{campaignID}
	}

	agreements := make(map[string][]int)
	for _, id := range reliabilityCampaigns {
		if err := s.collectAgreements(id, agreements); err != nil {
			return nil, err
		}
	}

	unreliable := make(map[string]bool)
	for workerID, scores := range agreements {
		if meanAgreement(scores) <= threshold {
			unreliable[workerID] = true
		}
	}

	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	results := make([]models.ConsensusLabel, 0, len(c.events))
	for imageID, workers := range c.events {
		kept := make(map[string]models.LabelEvent, len(workers))
		for workerID, ev := range workers {
			if !unreliable[workerID] {
				kept[workerID] = ev
			}
		}
		if len(kept) == 0 || len(kept) < minWorkers {
			continue
		}
		recomputed := computeConsensus(imageID, kept, c.firstSeen[imageID], &s.cfg, s.weigher)
		results = append(results, *recomputed.label)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ImageID < results[j].ImageID
	})

	return results, nil
}

// collectAgreements appends one 0/1 agreement sample per (worker, image) for
// every image in the campaign with a scoring target: its decoy label, or its
// consensus label when the consensus is certain. An uncertain majority is no
// yardstick for workers and contributes no samples.
func (s *MemoryStore) collectAgreements(campaignID string, agreements map[string][]int) error {
	c := s.campaign(campaignID)

	c.mu.Lock()
	defer c.mu.Unlock()

	for imageID, workers := range c.events {
		target, ok := c.decoys[imageID]
		if !ok {
			cached, err := c.consensusLocked(imageID, &s.cfg, s.weigher)
			if err != nil {
				return err
			}
			if !cached.label.Certain {
				continue
			}
			target = cached.label.Label
		}

		for workerID, ev := range workers {
			agreed := 0
			if ev.Label == target {
				agreed = 1
			}
			agreements[workerID] = append(agreements[workerID], agreed)
		}
	}

	return nil
}

func meanAgreement(scores []int) float64 {
	total := 0
	for _, v := range scores {
		total += v
	}
	return float64(total) / float64(len(scores))
}

package selector

import (
	"math"

	"github.com/labelhive/labelhive/pkg/models"
)

// RankDiverse re-ranks the pool with Maximal Marginal Relevance: each pick
// trades similarity to the seed set against redundancy with the images
// already picked. lambda 1.0 degenerates to plain Rank order, lambda 0.0
// maximises diversity. Scores in the result are seed similarities, so a
// diverse ranking is comparable with a plain one.
// See https://www.cs.cmu.edu/~jgc/publication/The_Use_MMR_Diversity_Based_LTMIR_1998.pdf
func RankDiverse(
	seeds *models.SeedSet,
	pool []models.Candidate,
	topK int,
	lambda float64,
	opts *Options,
) (*Result, error) {
	if topK <= 0 {
		return &Result{Candidates: []models.ScoredCandidate{}}, nil
	}

	scored, poolIdx, skipped, err := scorePool(seeds, pool, opts)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return &Result{Candidates: scored, Skipped: skipped}, nil
	}

	metric := Cosine
	if opts != nil && opts.Metric != nil {
		metric = opts.Metric
	}

	k := topK
	if k > len(scored) {
		k = len(scored)
	}

	// Seed the selection with the most similar candidate; ties go to the
	// earliest pool entry.
	best := 0
	for i := 1; i < len(scored); i++ {
		if scored[i].Score > scored[best].Score {
			best = i
		}
	}

	picked := []int{best}
	for len(picked) < k {
		bestScore := math.Inf(-1)
		idxToAdd := -1
		for i := range scored {
			if containsIdx(picked, i) {
				continue
			}
			redundancy := math.Inf(-1)
			for _, p := range picked {
				// poolIdx maps scored entries back to pool positions, so
				// the redundancy term reads the right embedding even when
				// image IDs collide.
				sim, err := metric(pool[poolIdx[i]].Embedding, pool[poolIdx[p]].Embedding)
				if err != nil {
					// Degenerate pairs contribute no redundancy.
					continue
				}
				if sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*scored[i].Score - (1-lambda)*redundancy
			if score > bestScore {
				bestScore = score
				idxToAdd = i
			}
		}
		if idxToAdd < 0 {
			break
		}
		picked = append(picked, idxToAdd)
	}

	results := make([]models.ScoredCandidate, len(picked))
	for i, p := range picked {
		results[i] = scored[p]
	}

	return &Result{Candidates: results, Skipped: skipped}, nil
}

func containsIdx(slice []int, val int) bool {
	for _, item := range slice {
		if item == val {
			return true
		}
	}
	return false
}

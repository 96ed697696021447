package selector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/labelhive/labelhive/internal"
	"github.com/labelhive/labelhive/pkg/models"
)

var log = internal.GetLogger()

// Options tune a selection run. The zero value scores sequentially with
// cosine similarity and max aggregation.
type Options struct {
	Metric      Metric
	Aggregation models.SelectionAggregation
	// Shards is the number of concurrent scoring shards. Sharding never
	// changes the ranking or tie-break outcome: shards score into an
	// index-addressed slice and a single sort pass merges the results.
	Shards int
}

// Result is the output of a selection run. Skipped carries per-candidate
// errors; a bad candidate never aborts the batch.
type Result struct {
	Candidates []models.ScoredCandidate
	Skipped    []models.SkippedCandidate
}

// Rank scores every candidate in the pool against the seed set, sorts
// descending by score with ties broken by pool insertion order, and returns
// the first topK entries. topK <= 0 returns an empty result, not an error.
func Rank(
	seeds *models.SeedSet,
	pool []models.Candidate,
	topK int,
	opts *Options,
) (*Result, error) {
	if topK <= 0 {
		return &Result{Candidates: []models.ScoredCandidate{}}, nil
	}

	scored, _, skipped, err := scorePool(seeds, pool, opts)
	if err != nil {
		return nil, err
	}

	// Stable sort preserves pool insertion order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK < len(scored) {
		scored = scored[:topK]
	}

	return &Result{Candidates: scored, Skipped: skipped}, nil
}

// Filter returns every candidate whose score is at least threshold, in pool
// order. Used when the goal is "everything plausibly similar" rather than
// "the best N".
func Filter(
	seeds *models.SeedSet,
	pool []models.Candidate,
	threshold float64,
	opts *Options,
) (*Result, error) {
	scored, _, skipped, err := scorePool(seeds, pool, opts)
	if err != nil {
		return nil, err
	}

	matched := make([]models.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Score >= threshold {
			matched = append(matched, c)
		}
	}

	return &Result{Candidates: matched, Skipped: skipped}, nil
}

type candidateScore struct {
	score float64
	err   error
}

// scorePool computes a per-candidate similarity score to the seed set.
// Per-candidate failures are collected as skips; a broken seed set is a
// hard error. The returned index slice maps each scored entry back to its
// pool position.
func scorePool(
	seeds *models.SeedSet,
	pool []models.Candidate,
	opts *Options,
) ([]models.ScoredCandidate, []int, []models.SkippedCandidate, error) {
	if opts == nil {
		opts = &Options{}
	}
	metric := opts.Metric
	if metric == nil {
		metric = Cosine
	}

	seedEmbeddings, width, err := validSeeds(seeds)
	if err != nil {
		return nil, nil, nil, err
	}

	scores := make([]candidateScore, len(pool))

	shards := opts.Shards
	if shards <= 1 || len(pool) < shards {
		scoreRange(pool, seedEmbeddings, width, metric, opts.Aggregation, scores, 0, len(pool))
	} else {
		var wg sync.WaitGroup
		chunk := (len(pool) + shards - 1) / shards
		for start := 0; start < len(pool); start += chunk {
			end := start + chunk
			if end > len(pool) {
				end = len(pool)
			}
			wg.Add(1)
			go func(start, end int) {
				defer wg.Done()
				scoreRange(pool, seedEmbeddings, width, metric, opts.Aggregation, scores, start, end)
			}(start, end)
		}
		wg.Wait()
	}

	scored := make([]models.ScoredCandidate, 0, len(pool))
	poolIdx := make([]int, 0, len(pool))
	var skipped []models.SkippedCandidate
	for i, s := range scores {
		if s.err != nil {
			skipped = append(skipped, models.SkippedCandidate{
				ImageID: pool[i].ImageID,
				Reason:  s.err.Error(),
				Err:     s.err,
			})
			continue
		}
		scored = append(scored, models.ScoredCandidate{
			ImageID: pool[i].ImageID,
			Score:   s.score,
		})
		poolIdx = append(poolIdx, i)
	}

	if len(skipped) > 0 {
		log.Warnf("selection skipped %d of %d candidates", len(skipped), len(pool))
	}

	return scored, poolIdx, skipped, nil
}

func scoreRange(
	pool []models.Candidate,
	seeds []models.Embedding,
	width int,
	metric Metric,
	aggregation models.SelectionAggregation,
	scores []candidateScore,
	start, end int,
) {
	for i := start; i < end; i++ {
		scores[i] = scoreCandidate(&pool[i], seeds, width, metric, aggregation)
	}
}

func scoreCandidate(
	candidate *models.Candidate,
	seeds []models.Embedding,
	width int,
	metric Metric,
	aggregation models.SelectionAggregation,
) candidateScore {
	if len(candidate.Embedding) != width {
		return candidateScore{
			err: models.NewInvalidEmbeddingError(
				candidate.ImageID, width, len(candidate.Embedding),
			),
		}
	}

	var best, sum float64
	for i, seed := range seeds {
		sim, err := metric(candidate.Embedding, seed)
		if err != nil {
			if errors.Is(err, models.ErrDegenerateVector) {
				err = models.NewDegenerateVectorError(candidate.ImageID)
			}
			return candidateScore{err: err}
		}
		if i == 0 || sim > best {
			best = sim
		}
		sum += sim
	}

	if aggregation == models.SelectionAggregationMean {
		return candidateScore{score: sum / float64(len(seeds))}
	}
	return candidateScore{score: best}
}

// validSeeds checks the seed set is non-empty and internally consistent and
// drops zero-magnitude seeds. A seed set with no usable embeddings is a
// caller error.
func validSeeds(seeds *models.SeedSet) ([]models.Embedding, int, error) {
	if seeds == nil || len(seeds.Embeddings) == 0 {
		return nil, 0, fmt.Errorf("seed set %q is empty", seedName(seeds))
	}

	width := seeds.Width()
	usable := make([]models.Embedding, 0, len(seeds.Embeddings))
	for i, e := range seeds.Embeddings {
		if len(e) != width {
			return nil, 0, fmt.Errorf(
				"seed set %q is inconsistent: embedding %d has %d dimensions, want %d: %w",
				seeds.Name, i, len(e), width, models.ErrInvalidEmbedding,
			)
		}
		degenerate := true
		for _, v := range e {
			if v != 0 {
				degenerate = false
				break
			}
		}
		if degenerate {
			log.Warnf("dropping zero-magnitude seed %d from seed set %q", i, seeds.Name)
			continue
		}
		usable = append(usable, e)
	}

	if len(usable) == 0 {
		return nil, 0, fmt.Errorf(
			"seed set %q has no usable embeddings: %w",
			seeds.Name, models.ErrDegenerateVector,
		)
	}

	return usable, width, nil
}

func seedName(seeds *models.SeedSet) string {
	if seeds == nil {
		return ""
	}
	return seeds.Name
}

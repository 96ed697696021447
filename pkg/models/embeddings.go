package models

// Embedding is a fixed-width vector representing an image's semantic content,
// produced by an external model. All embeddings compared against each other
// must come from the same model; mixing embedding spaces is a caller error.
type Embedding []float32

// SeedSet is a named set of embeddings belonging to a single semantic class,
// built from previously labelled images. Read-only during selection.
type SeedSet struct {
	Name       string      `json:"name"`
	Embeddings []Embedding `json:"embeddings"`
}

// Width returns the dimensionality of the seed embeddings, or 0 for an empty
// seed set.
func (s *SeedSet) Width() int {
	if len(s.Embeddings) == 0 {
		return 0
	}
	return len(s.Embeddings[0])
}

// Candidate is one unlabelled image available for selection.
type Candidate struct {
	ImageID   string    `json:"image_id"`
	Embedding Embedding `json:"embedding"`
}

// ScoredCandidate associates a candidate image with its similarity to a seed
// set. Derived, not stored long-term.
type ScoredCandidate struct {
	ImageID string  `json:"image_id"`
	Score   float64 `json:"score"`
}

// SkippedCandidate records a candidate excluded from a selection run, along
// with the reason. A bad candidate never aborts the batch.
type SkippedCandidate struct {
	ImageID string `json:"image_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

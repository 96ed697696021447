package models

type SelectionMetric string

const (
	SelectionMetricCosine SelectionMetric = "cosine"
	SelectionMetricDot    SelectionMetric = "dot"
)

type SelectionAggregation string

const (
	SelectionAggregationMax  SelectionAggregation = "max"
	SelectionAggregationMean SelectionAggregation = "mean"
)

// SelectionPayload is the request body for the rank and filter endpoints.
// TopK applies to rank, Threshold to filter.
type SelectionPayload struct {
	Seeds       SeedSet              `json:"seeds" validate:"required"`
	Candidates  []Candidate          `json:"candidates" validate:"required"`
	TopK        int                  `json:"top_k,omitempty"`
	Threshold   float64              `json:"threshold,omitempty"`
	Metric      SelectionMetric      `json:"metric,omitempty" validate:"omitempty,oneof=cosine dot"`
	Aggregation SelectionAggregation `json:"aggregation,omitempty" validate:"omitempty,oneof=max mean"`
	// Diversify re-ranks with Maximal Marginal Relevance so near-duplicate
	// images don't crowd out the top K. MMRLambda trades seed similarity
	// against diversity; 0.5 when unset.
	Diversify bool    `json:"diversify,omitempty"`
	MMRLambda float64 `json:"mmr_lambda,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type SelectionResultPage struct {
	Results     []ScoredCandidate  `json:"results"`
	Skipped     []SkippedCandidate `json:"skipped,omitempty"`
	ResultCount int                `json:"result_count"`
}

// ManifestPayload is the request body for building a labelling manifest from
// selected images.
type ManifestPayload struct {
	// ImageURIs are the images to stage for labelling, in selection order.
	ImageURIs []string `json:"image_uris" validate:"required,min=1"`
	// Categories a labeller will choose from.
	Categories []string `json:"categories" validate:"required,min=1"`
	// PositiveExamples and NegativeExamples are example image URIs shown
	// alongside the task.
	PositiveExamples []string `json:"positive_examples,omitempty"`
	NegativeExamples []string `json:"negative_examples,omitempty"`
	// GroupSize overrides the configured images-per-task count when > 0.
	GroupSize int `json:"group_size,omitempty"`
	// OtherCategoryLabel overrides the configured catch-all category.
	OtherCategoryLabel string `json:"other_category_label,omitempty"`
}

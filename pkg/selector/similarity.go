package selector

import (
	"math"

	"github.com/viterin/vek/vek32"

	"github.com/labelhive/labelhive/pkg/models"
)

// Metric computes the similarity between two equal-width vectors. Metrics
// are pluggable; the selector validates vector widths before calling.
type Metric func(x, y models.Embedding) (float64, error)

// Cosine is the default metric: dot product divided by the product of the
// two vectors' magnitudes, in [-1, 1]. Returns ErrDegenerateVector when
// either vector has zero magnitude.
func Cosine(x, y models.Embedding) (float64, error) {
	nx := vek32.Norm(x)
	ny := vek32.Norm(y)
	if nx == 0 || ny == 0 {
		return 0, models.ErrDegenerateVector
	}
	val := float64(vek32.Dot(x, y)) / (float64(nx) * float64(ny))
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return 0, models.ErrDegenerateVector
	}
	// Clamp float32 rounding drift so a vector's self-similarity is never
	// reported above 1.
	if val > 1 {
		val = 1
	} else if val < -1 {
		val = -1
	}
	return val, nil
}

// Dot is an inner-product metric for embeddings that are already
// L2-normalized by the producing model.
func Dot(x, y models.Embedding) (float64, error) {
	return float64(vek32.Dot(x, y)), nil
}

// MetricFor maps a config/API metric name to its implementation. Unknown
// names fall back to cosine.
func MetricFor(name models.SelectionMetric) Metric {
	switch name {
	case models.SelectionMetricDot:
		return Dot
	default:
		return Cosine
	}
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// LabelEvent is one worker's judgment for one image. Immutable once recorded.
// Multiple events may exist per image; the store keeps only the latest event
// per worker, ordered by timestamp so redelivery is idempotent.
type LabelEvent struct {
	UUID       uuid.UUID `json:"uuid,omitempty"`
	ImageID    string    `json:"image_id" validate:"required"`
	WorkerID   string    `json:"worker_id" validate:"required"`
	Label      string    `json:"label" validate:"required"`
	Confidence float64   `json:"confidence,omitempty" validate:"omitempty,gt=0,lte=1"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConsensusLabel is the aggregated judgment for one image, derived wholesale
// from its current label events and never mutated in place.
type ConsensusLabel struct {
	ImageID string `json:"image_id"`
	Label   string `json:"label"`
	// Agreement is the fraction of contributing workers whose vote matches
	// the winning label, in [0, 1]. 1.0 iff all workers agree.
	Agreement float64 `json:"agreement"`
	// Workers is the number of distinct contributing workers.
	Workers int `json:"workers"`
	// Disputed is set when the top two labels tie or agreement falls below
	// the configured threshold.
	Disputed bool `json:"disputed"`
	// Certain reports whether the winning label meets the certainty rule
	// (minimum vote count and proportion). Only certain consensuses count
	// towards worker reliability.
	Certain bool `json:"certain"`
}

// WorkerReliability summarises how often a worker's votes agreed with the
// consensus over images whose consensus was certain, decoys included.
type WorkerReliability struct {
	WorkerID string `json:"worker_id"`
	// Agreement is the worker's mean agreement-with-majority rate.
	Agreement float64 `json:"agreement"`
	// Scored is how many certain images the worker was scored on.
	Scored   int  `json:"scored"`
	Reliable bool `json:"reliable"`
}

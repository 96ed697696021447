package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

var ErrInvalidEmbedding = errors.New("invalid embedding")

// InvalidEmbeddingError indicates an embedding whose width differs from the
// seed set's. This is a caller bug and is never retried.
type InvalidEmbeddingError struct {
	ImageID string
	Want    int
	Got     int
}

func (e *InvalidEmbeddingError) Error() string {
	return fmt.Sprintf(
		"invalid embedding for %q: want %d dimensions, got %d",
		e.ImageID,
		e.Want,
		e.Got,
	)
}

func (e *InvalidEmbeddingError) Unwrap() error {
	return ErrInvalidEmbedding
}

func NewInvalidEmbeddingError(imageID string, want, got int) error {
	return &InvalidEmbeddingError{ImageID: imageID, Want: want, Got: got}
}

var ErrDegenerateVector = errors.New("degenerate vector")

// DegenerateVectorError indicates a zero-magnitude vector. Cosine similarity
// is undefined for it, so the candidate is excluded from scoring rather than
// aborting the run.
type DegenerateVectorError struct {
	ImageID string
}

func (e *DegenerateVectorError) Error() string {
	return fmt.Sprintf("zero-magnitude embedding for %q", e.ImageID)
}

func (e *DegenerateVectorError) Unwrap() error {
	return ErrDegenerateVector
}

func NewDegenerateVectorError(imageID string) error {
	return &DegenerateVectorError{ImageID: imageID}
}

var ErrNoData = errors.New("no label events")

// NoDataError indicates consensus was requested for an image with zero label
// events. Distinct from a low-confidence consensus: callers must not conflate
// the two.
type NoDataError struct {
	ImageID string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no label events recorded for %q", e.ImageID)
}

func (e *NoDataError) Unwrap() error {
	return ErrNoData
}

func NewNoDataError(imageID string) error {
	return &NoDataError{ImageID: imageID}
}

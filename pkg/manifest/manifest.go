// Package manifest builds labelling-task manifests from selected images.
// Each line of a manifest is one task: a group of images labelled together,
// with the category list and example images attached to the group's first
// record because the labelling backend only accepts a flat string payload
// per task.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/labelhive/labelhive/config"
	"github.com/labelhive/labelhive/pkg/models"
)

// Task is one entry of a manifest. Source is a JSON-encoded record list; the
// labelling backend requires a string here, not a JSON value.
type Task struct {
	Source string `json:"source"`
}

type record struct {
	Categories         []string `json:"categories,omitempty"`
	PositiveExamples   []string `json:"positive_examples,omitempty"`
	NegativeExamples   []string `json:"negative_examples,omitempty"`
	OtherCategoryLabel string   `json:"other_category_label,omitempty"`
	SourceRef          string   `json:"source-ref"`
	Index              int      `json:"index"`
}

// Build chunks the payload's images into tasks of roughly the configured
// group size, round-robin so early and late selections mix. Image order
// within a task follows the selection order handed in.
func Build(payload *models.ManifestPayload, cfg *config.ManifestConfig) ([]Task, error) {
	if payload == nil || len(payload.ImageURIs) == 0 {
		return nil, errors.New("manifest payload has no images")
	}
	if len(payload.Categories) == 0 {
		return nil, errors.New("manifest payload has no categories")
	}

	groupSize := cfg.GroupSize
	if payload.GroupSize > 0 {
		groupSize = payload.GroupSize
	}
	if groupSize <= 0 {
		return nil, fmt.Errorf("invalid manifest group size %d", groupSize)
	}

	otherLabel := cfg.OtherCategoryLabel
	if payload.OtherCategoryLabel != "" {
		otherLabel = payload.OtherCategoryLabel
	}

	taskCount := (len(payload.ImageURIs) + groupSize - 1) / groupSize

	groups := make([][]record, taskCount)
	for idx, uri := range payload.ImageURIs {
		group := idx % taskCount
		groups[group] = append(groups[group], record{
			SourceRef: uri,
			Index:     idx,
		})
	}

	tasks := make([]Task, taskCount)
	for i, group := range groups {
		group[0].Categories = payload.Categories
		group[0].PositiveExamples = payload.PositiveExamples
		group[0].NegativeExamples = payload.NegativeExamples
		group[0].OtherCategoryLabel = otherLabel

		source, err := json.Marshal(group)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal manifest task: %w", err)
		}
		tasks[i] = Task{Source: string(source)}
	}

	return tasks, nil
}

// WriteJSONLines writes the manifest in the one-JSON-object-per-line format
// the labelling backend ingests.
func WriteJSONLines(w io.Writer, tasks []Task) error {
	enc := json.NewEncoder(w)
	for _, task := range tasks {
		if err := enc.Encode(task); err != nil {
			return fmt.Errorf("failed to write manifest line: %w", err)
		}
	}
	return nil
}

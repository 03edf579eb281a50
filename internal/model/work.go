package model

import (
	"time"

	"github.com/google/uuid"
)

// Input and output keys of the blur task.
const (
	KeyImagePath        = "IMAGE_PATH"
	KeyOutputPath       = "OUTPUT_PATH"
	KeyBlurredImagePath = "BLURRED_IMAGE_PATH"
)

// TagImageBlur is the tag attached to every blur work request.
const TagImageBlur = "image_blur"

// State is a stage in the lifecycle of a unit of work.
type State string

const (
	StateEnqueued  State = "ENQUEUED"
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// IsFinished reports whether s is a terminal state.
func (s State) IsFinished() bool {
	return s == StateSucceeded || s == StateFailed
}

// WorkRequest is a single blur job handed to the dispatcher.
type WorkRequest struct {
	ID        uuid.UUID         `json:"id"`
	Tags      []string          `json:"tags"`
	Input     map[string]string `json:"input"` // IMAGE_PATH, OUTPUT_PATH
	CreatedAt time.Time         `json:"created_at"`
}

// WorkInfo is the observable state of a work request.
type WorkInfo struct {
	ID        uuid.UUID         `json:"id"`
	Tags      []string          `json:"tags"`
	State     State             `json:"state"`
	Output    map[string]string `json:"output,omitempty"`
	Failure   string            `json:"failure,omitempty"` // failure kind, e.g. "decode"
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// HasTag reports whether the work carries tag.
func (i WorkInfo) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Package job defines jobs, their steps and the transient run state the
// engine advances one step at a time.
package job

import (
	"time"
)

// Step is one action within a job. Ordering comes from the position in the
// job's step list, not from ID.
type Step struct {
	ID          int      `json:"id" validate:"gte=0"`
	Name        string   `json:"name" validate:"required"`
	Action      Action   `json:"action" validate:"required,action"`
	Source      string   `json:"source,omitempty" validate:"omitempty,location"`
	Sources     []string `json:"sources,omitempty" validate:"omitempty,dive,location"`
	Destination string   `json:"destination,omitempty" validate:"omitempty,location"`
}

// State enables or disables scheduling of a job.
type State string

const (
	StateEnabled  State = "ENABLED"
	StateDisabled State = "DISABLED"
)

// ValidationState is the verdict attached to a job's step list.
type ValidationState string

const (
	Validating ValidationState = "VALIDATING"
	Valid      ValidationState = "VALID"
	Invalid    ValidationState = "INVALID"
)

// Details is the job record without its steps.
type Details struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Schedule         string          `json:"schedule"`
	Updated          time.Time       `json:"updated"`
	State            State           `json:"state"`
	ValidationState  ValidationState `json:"validationState"`
	ValidationReason string          `json:"validationReason,omitempty"`
}

// Job is a job record plus its ordered steps.
type Job struct {
	Details
	Steps []Step `json:"steps"`
}

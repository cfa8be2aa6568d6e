// Package validation decides whether a job's step list may run.
//
// A list is VALID only when every step is well formed: a known action, a
// non-empty name, a non-negative unique id, well formed locations, and
// exactly the location fields its action uses. The ERROR action is a
// runtime fault-injection hook and is never accepted here.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ncobase/blobjob/job"
)

// Verdict is the outcome of validating a step list.
type Verdict struct {
	State  job.ValidationState `json:"state"`
	Reason string              `json:"reason,omitempty"`
}

// Valid reports whether the verdict allows the job to run.
func (v Verdict) Valid() bool { return v.State == job.Valid }

// Error describes why a step list was rejected.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return strings.Join(e.Problems, "; ")
}

// StepValidator checks step lists. It is safe for concurrent use.
type StepValidator struct {
	validate *validator.Validate
	lang     string
}

// NewStepValidator creates a validator. lang selects the message language
// ("en" by default).
func NewStepValidator(lang ...string) *StepValidator {
	l := "en"
	if len(lang) > 0 && lang[0] != "" {
		l = lang[0]
	}
	return &StepValidator{validate: newValidate(), lang: l}
}

// Validate returns VALID or INVALID with a human readable reason.
func (v *StepValidator) Validate(steps []job.Step) Verdict {
	if err := v.Check(steps); err != nil {
		return Verdict{State: job.Invalid, Reason: err.Error()}
	}
	return Verdict{State: job.Valid}
}

// ValidateJSON validates a serialized step list. Malformed documents are INVALID.
func (v *StepValidator) ValidateJSON(raw []byte) Verdict {
	var steps []job.Step
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&steps); err != nil {
		return Verdict{State: job.Invalid, Reason: fmt.Sprintf("malformed step list: %v", err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Verdict{State: job.Invalid, Reason: "malformed step list: unexpected data after the array"}
	}
	if steps == nil {
		return Verdict{State: job.Invalid, Reason: "step list must be a JSON array"}
	}
	return v.Validate(steps)
}

// Check returns an *Error listing every problem, or nil.
func (v *StepValidator) Check(steps []job.Step) error {
	var problems []string
	seen := make(map[int]int, len(steps))

	for i := range steps {
		s := steps[i]
		prefix := "steps[" + strconv.Itoa(i) + "]"

		err := v.validate.Struct(s)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				problems = append(problems, prefix+": "+parseMessage(e.Field(), e.Tag(), e.Param(), v.lang))
			}
		} else if err != nil {
			problems = append(problems, prefix+": "+err.Error())
		}

		if first, dup := seen[s.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: %s (first used by steps[%d])",
				prefix, parseMessage("id", "unique", strconv.Itoa(s.ID), v.lang), first))
		} else {
			seen[s.ID] = i
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

package job

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAction is returned for an action outside the known set.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInjectedFault is returned when an ERROR step executes.
	ErrInjectedFault = errors.New("action ERROR found for step")
	// ErrStepIndexOutOfRange is returned when advancing a run with no
	// step left at Current.
	ErrStepIndexOutOfRange = errors.New("step index out of range")
)

// IndexError reports a run whose Current does not address a step.
type IndexError struct {
	RunID     string
	Current   int
	StepCount int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("run %s: current %d not in [0, %d)", e.RunID, e.Current, e.StepCount)
}

func (e *IndexError) Is(target error) bool { return target == ErrStepIndexOutOfRange }

// StepError wraps a failure with the step that produced it.
type StepError struct {
	StepID   int
	StepName string
	Action   Action
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%d) %s: %v", e.StepName, e.StepID, e.Action, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// WrapStep attaches step context to err. A nil err stays nil.
func WrapStep(s Step, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{StepID: s.ID, StepName: s.Name, Action: s.Action, Err: err}
}

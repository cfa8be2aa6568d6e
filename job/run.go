package job

import "fmt"

// Run is the execution state of one job run. It is a value: advancing
// produces a new Run and leaves the caller's copy untouched.
type Run struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StepCount int    `json:"stepCount"`
	Start     int    `json:"start"`
	Current   int    `json:"current"`
	Steps     []Step `json:"steps"`
}

// NewRun builds a run positioned at the first step.
func NewRun(id, name string, steps []Step) Run {
	return Run{
		ID:        id,
		Name:      name,
		StepCount: len(steps),
		Start:     0,
		Current:   0,
		Steps:     steps,
	}
}

// Done reports whether every step has been executed.
func (r Run) Done() bool {
	return r.Current == r.StepCount
}

// Check verifies 0 <= Current < StepCount and StepCount == len(Steps),
// i.e. that there is a step to execute.
func (r Run) Check() error {
	if r.StepCount != len(r.Steps) {
		return fmt.Errorf("run %s: stepCount %d does not match %d steps", r.ID, r.StepCount, len(r.Steps))
	}
	if r.Current < 0 || r.Current >= r.StepCount {
		return &IndexError{RunID: r.ID, Current: r.Current, StepCount: r.StepCount}
	}
	return nil
}

// CurrentStep returns the step at Current. Call Check first.
func (r Run) CurrentStep() Step {
	return r.Steps[r.Current]
}

// Next returns a copy of r positioned at the following step.
func (r Run) Next() Run {
	next := r
	next.Current++
	return next
}

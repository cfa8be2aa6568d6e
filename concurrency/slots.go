// Package concurrency holds the primitives the scheduler uses to bound
// work: per-key exclusion and a worker pool (see package worker).
package concurrency

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Slots grants at most one holder per key. The scheduler uses job ids as
// keys so a job never has two runs in flight.
type Slots struct {
	mu   sync.Mutex
	held map[string]struct{}

	acquired atomic.Int64
	rejected atomic.Int64
}

// NewSlots creates an empty slot set.
func NewSlots() *Slots {
	return &Slots{held: make(map[string]struct{})}
}

// TryAcquire takes the slot for key without blocking. It returns false
// when the slot is already held.
//
// Usage:
//
//	if !slots.TryAcquire(jobID) {
//	    // a run of this job is still in flight
//	    return
//	}
//	defer slots.Release(jobID)
func (s *Slots) TryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.held[key]; busy {
		s.rejected.Add(1)
		return false
	}
	s.held[key] = struct{}{}
	s.acquired.Add(1)
	return true
}

// Release frees the slot for key.
func (s *Slots) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.held[key]; !busy {
		panic(fmt.Sprintf("releasing slot %q that is not held", key))
	}
	delete(s.held, key)
}

// Busy reports whether key is held.
func (s *Slots) Busy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.held[key]
	return busy
}

// GetMetrics returns current metrics
func (s *Slots) GetMetrics() map[string]int64 {
	s.mu.Lock()
	held := len(s.held)
	s.mu.Unlock()
	return map[string]int64{
		"held":     int64(held),
		"acquired": s.acquired.Load(),
		"rejected": s.rejected.Load(),
	}
}

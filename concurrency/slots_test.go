package concurrency

import (
	"sync"
	"testing"
)

func TestSlotsExclusivePerKey(t *testing.T) {
	s := NewSlots()
	if !s.TryAcquire("a") {
		t.Fatal("first acquire failed")
	}
	if s.TryAcquire("a") {
		t.Fatal("second acquire of the same key succeeded")
	}
	if !s.TryAcquire("b") {
		t.Fatal("other keys must be independent")
	}
	if !s.Busy("a") {
		t.Error("a should be busy")
	}

	s.Release("a")
	if s.Busy("a") {
		t.Error("a should be free")
	}
	if !s.TryAcquire("a") {
		t.Error("acquire after release failed")
	}

	m := s.GetMetrics()
	if m["held"] != 2 || m["acquired"] != 3 || m["rejected"] != 1 {
		t.Errorf("metrics = %v", m)
	}
}

func TestSlotsReleaseUnheldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	NewSlots().Release("x")
}

func TestSlotsConcurrentAcquire(t *testing.T) {
	s := NewSlots()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquire("job") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}
}

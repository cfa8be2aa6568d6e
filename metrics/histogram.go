package metrics

import (
	"container/ring"
	"sort"
	"sync"
)

// Histogram keeps the last maxSamples values plus running totals.
type Histogram struct {
	mu         sync.Mutex
	samples    *ring.Ring
	maxSamples int
	count      int64
	sum        float64
	min        float64
	max        float64
	buckets    []float64
}

// NewHistogram creates a new histogram
func NewHistogram(maxSamples int, buckets ...float64) *Histogram {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	if len(buckets) == 0 {
		buckets = []float64{50, 90, 99}
	}

	return &Histogram{
		samples:    ring.New(maxSamples),
		maxSamples: maxSamples,
		buckets:    buckets,
	}
}

// Add adds a value to the histogram
func (h *Histogram) Add(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v

	h.samples.Value = v
	h.samples = h.samples.Next()
}

// HistogramStats returns histogram statistics
type HistogramStats struct {
	Count       int64               `json:"count"`
	Min         float64             `json:"min"`
	Max         float64             `json:"max"`
	Mean        float64             `json:"mean"`
	Percentiles map[float64]float64 `json:"percentiles"`
}

// GetStats returns current histogram statistics
func (h *Histogram) GetStats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return HistogramStats{}
	}

	samples := make([]float64, 0, h.maxSamples)
	h.samples.Do(func(v any) {
		if v != nil {
			samples = append(samples, v.(float64))
		}
	})
	sort.Float64s(samples)

	stats := HistogramStats{
		Count:       h.count,
		Min:         h.min,
		Max:         h.max,
		Mean:        h.sum / float64(h.count),
		Percentiles: make(map[float64]float64, len(h.buckets)),
	}

	// Calculate configured percentiles
	for _, p := range h.buckets {
		idx := int(float64(len(samples)) * p / 100)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		stats.Percentiles[p] = samples[idx]
	}

	return stats
}

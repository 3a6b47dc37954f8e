package metrics

import (
	"math"
	"sort"
	"time"
)

// latencySampleSize bounds the per-provider latency reservoir used for
// percentile estimates.
const latencySampleSize = 256

// minuteWindow is how much per-minute history is retained.
const minuteWindow = 24 * time.Hour

// latencyRing keeps the most recent latency samples in milliseconds.
type latencyRing struct {
	samples [latencySampleSize]float64
	next    int
	filled  int
}

func (r *latencyRing) add(ms float64) {
	r.samples[r.next] = ms
	r.next = (r.next + 1) % latencySampleSize
	if r.filled < latencySampleSize {
		r.filled++
	}
}

// percentile returns the p-th percentile (0 < p < 1) of the retained
// samples, or 0 when empty.
func (r *latencyRing) percentile(p float64) float64 {
	if r.filled == 0 {
		return 0
	}
	sorted := make([]float64, r.filled)
	copy(sorted, r.samples[:r.filled])
	sort.Float64s(sorted)

	idx := int(math.Ceil(p*float64(r.filled))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// minuteBucket aggregates one minute of traffic for a provider.
type minuteBucket struct {
	Start          time.Time `json:"start"`
	Requests       int64     `json:"requests"`
	Failures       int64     `json:"failures"`
	TotalLatencyMs float64   `json:"total_latency_ms"`
	MaxLatencyMs   float64   `json:"max_latency_ms"`
}

// minuteSeries holds the trailing day of per-minute buckets.
type minuteSeries struct {
	buckets []minuteBucket
}

// record folds an outcome into the bucket for its minute.
func (s *minuteSeries) record(at time.Time, failure bool, latencyMs float64) {
	minute := at.Truncate(time.Minute)

	n := len(s.buckets)
	if n == 0 || !s.buckets[n-1].Start.Equal(minute) {
		s.buckets = append(s.buckets, minuteBucket{Start: minute})
		n++
	}

	b := &s.buckets[n-1]
	b.Requests++
	if failure {
		b.Failures++
	}
	b.TotalLatencyMs += latencyMs
	if latencyMs > b.MaxLatencyMs {
		b.MaxLatencyMs = latencyMs
	}
}

// prune drops buckets older than the retention window.
func (s *minuteSeries) prune(now time.Time) {
	cutoff := now.Add(-minuteWindow)
	firstKept := len(s.buckets)
	for i, b := range s.buckets {
		if !b.Start.Before(cutoff) {
			firstKept = i
			break
		}
	}
	if firstKept > 0 {
		s.buckets = append([]minuteBucket(nil), s.buckets[firstKept:]...)
	}
}

// since aggregates buckets newer than the cutoff.
func (s *minuteSeries) since(cutoff time.Time) (requests, failures int64, avgLatencyMs float64) {
	var totalLatency float64
	for i := len(s.buckets) - 1; i >= 0; i-- {
		b := s.buckets[i]
		if b.Start.Before(cutoff) {
			break
		}
		requests += b.Requests
		failures += b.Failures
		totalLatency += b.TotalLatencyMs
	}
	if requests > 0 {
		avgLatencyMs = totalLatency / float64(requests)
	}
	return requests, failures, avgLatencyMs
}

// ewma is an exponentially weighted moving average baseline.
type ewma struct {
	alpha  float64
	value  float64
	primed bool
}

func newEWMA(alpha float64) *ewma {
	return &ewma{alpha: alpha}
}

// update folds in a sample and returns the new baseline.
func (e *ewma) update(sample float64) float64 {
	if !e.primed {
		e.value = sample
		e.primed = true
		return e.value
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	return e.value
}

// baseline returns the current value, or 0 before the first sample.
func (e *ewma) baseline() float64 {
	return e.value
}

// anomalous reports whether a sample deviates from the baseline by more
// than factor (e.g. 2.0 means double the baseline). Unprimed baselines
// never flag.
func (e *ewma) anomalous(sample, factor float64) bool {
	if !e.primed || e.value <= 0 {
		return false
	}
	return sample > e.value*factor
}

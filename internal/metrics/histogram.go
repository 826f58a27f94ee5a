package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Histogram is a fixed-bucket latency histogram. Buckets are upper bounds in
// seconds; the +Inf bucket is implicit and lives in the last count slot.
type Histogram struct {
	buckets []float64
	counts  []uint64
	sumNs   uint64
	count   uint64
}

func NewHistogram(buckets []float64) *Histogram {
	return &Histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)+1),
	}
}

// Observe records one duration. Non-positive durations are ignored.
func (h *Histogram) Observe(duration time.Duration) {
	if duration <= 0 {
		return
	}
	seconds := duration.Seconds()
	bucketIndex := len(h.buckets)
	for i, bound := range h.buckets {
		if seconds <= bound {
			bucketIndex = i
			break
		}
	}
	atomic.AddUint64(&h.counts[bucketIndex], 1)
	atomic.AddUint64(&h.sumNs, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&h.count, 1)
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	return atomic.LoadUint64(&h.count)
}

func (h *Histogram) write(sb *strings.Builder, name, leFmt string) {
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += atomic.LoadUint64(&h.counts[i])
		fmt.Fprintf(sb, "%s_bucket{le=\"%s\"} %d\n", name, fmt.Sprintf(leFmt, bound), cumulative)
	}
	cumulative += atomic.LoadUint64(&h.counts[len(h.buckets)])
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", name, cumulative)
	sumSeconds := float64(atomic.LoadUint64(&h.sumNs)) / float64(time.Second)
	fmt.Fprintf(sb, "%s_sum %.6f\n", name, sumSeconds)
	fmt.Fprintf(sb, "%s_count %d\n", name, atomic.LoadUint64(&h.count))
}

// EscapeLabel escapes backslash and double quote for Prometheus label values.
func EscapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "\"", "\\\"")
}

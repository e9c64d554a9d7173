// Package metrics records dispatch latencies using HDR histograms.
//
// # Basic Usage
//
//	rec := metrics.NewRecorder()
//	d := request.New(loader, request.WithRecorder(rec))
//	...
//	snap := rec.Snapshot()
//	fmt.Printf("P95 Latency: %v\n", snap.Latency.P95)
//
// # Thread Safety
//
// Recorder is safe for concurrent use. Counters use atomic operations and
// histograms are guarded by a mutex.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Range: 1 microsecond to 1 hour, 3 significant figures
const (
	histogramMin     = 1
	histogramMax     = 3600000000
	histogramSigFigs = 3
)

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min" yaml:"min"`
	Max    time.Duration `json:"max" yaml:"max"`
	Mean   time.Duration `json:"mean" yaml:"mean"`
	StdDev time.Duration `json:"stdDev" yaml:"stdDev"`
	P50    time.Duration `json:"p50" yaml:"p50"`
	P90    time.Duration `json:"p90" yaml:"p90"`
	P95    time.Duration `json:"p95" yaml:"p95"`
	P99    time.Duration `json:"p99" yaml:"p99"`
	Count  int64         `json:"count" yaml:"count"`
}

// Snapshot is a point-in-time view of a Recorder.
type Snapshot struct {
	TotalRequests   int64                   `json:"totalRequests" yaml:"totalRequests"`
	SuccessRequests int64                   `json:"successRequests" yaml:"successRequests"`
	FailedRequests  int64                   `json:"failedRequests" yaml:"failedRequests"`
	ErrorRate       float64                 `json:"errorRate" yaml:"errorRate"`
	Latency         LatencyStats            `json:"latency" yaml:"latency"`
	ByName          map[string]LatencyStats `json:"byName,omitempty" yaml:"byName,omitempty"`
}

// Recorder aggregates request outcomes.
type Recorder struct {
	hist   *hdrhistogram.Histogram
	histMu sync.Mutex

	named   map[string]*hdrhistogram.Histogram
	namedMu sync.Mutex

	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		hist:  newHistogram(),
		named: make(map[string]*hdrhistogram.Histogram),
	}
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
}

// RecordLatency records a request latency under requestName.
func (r *Recorder) RecordLatency(duration time.Duration, requestName string, success bool) {
	micros := duration.Microseconds()
	if micros < histogramMin {
		micros = histogramMin
	}
	if micros > histogramMax {
		micros = histogramMax
	}

	// HDR histogram RecordValue is not thread-safe.
	r.histMu.Lock()
	_ = r.hist.RecordValue(micros)
	r.histMu.Unlock()

	if requestName != "" {
		r.namedMu.Lock()
		h, ok := r.named[requestName]
		if !ok {
			h = newHistogram()
			r.named[requestName] = h
		}
		_ = h.RecordValue(micros)
		r.namedMu.Unlock()
	}

	r.total.Add(1)
	if success {
		r.success.Add(1)
	} else {
		r.failed.Add(1)
	}
}

// Snapshot returns the current statistics.
func (r *Recorder) Snapshot() Snapshot {
	r.histMu.Lock()
	overall := statsOf(r.hist)
	r.histMu.Unlock()

	r.namedMu.Lock()
	byName := make(map[string]LatencyStats, len(r.named))
	for name, h := range r.named {
		byName[name] = statsOf(h)
	}
	r.namedMu.Unlock()

	snap := Snapshot{
		TotalRequests:   r.total.Load(),
		SuccessRequests: r.success.Load(),
		FailedRequests:  r.failed.Load(),
		Latency:         overall,
		ByName:          byName,
	}
	if snap.TotalRequests > 0 {
		snap.ErrorRate = float64(snap.FailedRequests) / float64(snap.TotalRequests)
	}
	return snap
}

// Names returns the recorded request names in sorted order.
func (r *Recorder) Names() []string {
	r.namedMu.Lock()
	defer r.namedMu.Unlock()
	names := make([]string, 0, len(r.named))
	for name := range r.named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset discards all recorded values.
func (r *Recorder) Reset() {
	r.histMu.Lock()
	r.hist.Reset()
	r.histMu.Unlock()

	r.namedMu.Lock()
	r.named = make(map[string]*hdrhistogram.Histogram)
	r.namedMu.Unlock()

	r.total.Store(0)
	r.success.Store(0)
	r.failed.Store(0)
}

func statsOf(h *hdrhistogram.Histogram) LatencyStats {
	return LatencyStats{
		Min:    time.Duration(h.Min()) * time.Microsecond,
		Max:    time.Duration(h.Max()) * time.Microsecond,
		Mean:   time.Duration(h.Mean()) * time.Microsecond,
		StdDev: time.Duration(h.StdDev()) * time.Microsecond,
		P50:    time.Duration(h.ValueAtQuantile(50)) * time.Microsecond,
		P90:    time.Duration(h.ValueAtQuantile(90)) * time.Microsecond,
		P95:    time.Duration(h.ValueAtQuantile(95)) * time.Microsecond,
		P99:    time.Duration(h.ValueAtQuantile(99)) * time.Microsecond,
		Count:  h.TotalCount(),
	}
}

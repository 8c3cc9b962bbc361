package app

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
)

// maxLatencySamples bounds the inference latency window.
const maxLatencySamples = 1024

// Stats counts what happened during a run.
type Stats struct {
	clock clock.Clock
	mu    sync.Mutex

	started             time.Time
	frames              int
	acquisitionFailures int
	inferences          int
	inferenceFailures   int
	stillSkips          int
	markers             int
	latencies           stats.Float64Data
	next                int
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Frames              int     `json:"frames"`
	AcquisitionFailures int     `json:"acquisition_failures"`
	Inferences          int     `json:"inferences"`
	InferenceFailures   int     `json:"inference_failures"`
	StillSkips          int     `json:"still_skips"`
	Markers             int     `json:"markers"`
	Elapsed             string  `json:"elapsed"`
	FPS                 float64 `json:"fps"`
	LatencyMeanMs       float64 `json:"latency_mean_ms"`
	LatencyP95Ms        float64 `json:"latency_p95_ms"`
}

// NewStats creates Stats timed by clk.
func NewStats(clk clock.Clock) *Stats {
	return &Stats{
		clock:   clk,
		started: clk.Now(),
	}
}

// Start resets the elapsed time origin.
func (s *Stats) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = s.clock.Now()
}

// Frame counts one loop iteration, successful or not.
func (s *Stats) Frame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

// AcquisitionFailed counts a frame that could not be read.
func (s *Stats) AcquisitionFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquisitionFailures++
}

// Inferred records one forward pass and its latency.
func (s *Stats) Inferred(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inferences++

	ms := float64(latency) / float64(time.Millisecond)
	if len(s.latencies) < maxLatencySamples {
		s.latencies = append(s.latencies, ms)
		return
	}
	s.latencies[s.next] = ms
	s.next = (s.next + 1) % maxLatencySamples
}

// InferenceFailed counts a forward pass whose output could not be used.
func (s *Stats) InferenceFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inferenceFailures++
}

// StillSkipped counts a frame that reused the previous keypoints.
func (s *Stats) StillSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stillSkips++
}

// Markers adds n drawn markers.
func (s *Stats) Markers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers += n
}

// Snapshot returns the current counters, frame rate and latency summary.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.clock.Since(s.started)
	snap := Snapshot{
		Frames:              s.frames,
		AcquisitionFailures: s.acquisitionFailures,
		Inferences:          s.inferences,
		InferenceFailures:   s.inferenceFailures,
		StillSkips:          s.stillSkips,
		Markers:             s.markers,
		Elapsed:             elapsed.String(),
	}
	if elapsed > 0 {
		snap.FPS = float64(s.frames) / elapsed.Seconds()
	}
	if len(s.latencies) > 0 {
		snap.LatencyMeanMs, _ = s.latencies.Mean()
		snap.LatencyP95Ms, _ = s.latencies.Percentile(95)
	}
	return snap
}

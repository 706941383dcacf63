// Package metrics tracks proof generation timings. A Tracker keeps a rolling
// in-memory window for cheap summaries; an optional pebble-backed Store
// persists every sample so history survives restarts.
package metrics

import (
	"sync"
	"time"

	"github.com/omron-net/omron-node/config"
	"github.com/omron-net/omron-node/log"
)

// DefaultWindow is how many recent samples a Tracker retains.
const DefaultWindow = 1000

// Sample is a single recorded proof run.
type Sample struct {
	Circuit      string        `cbor:"circuit" json:"circuit"`
	ProofTime    time.Duration `cbor:"proofTime" json:"proofTime"`
	OverheadTime time.Duration `cbor:"overheadTime" json:"overheadTime"`
	TotalTime    time.Duration `cbor:"totalTime" json:"totalTime"`
	Success      bool          `cbor:"success" json:"success"`
	At           time.Time     `cbor:"at" json:"at"`
}

// WithinDeadline reports whether the run finished inside the network's
// response deadline. A failed run never counts.
func (s Sample) WithinDeadline() bool {
	return s.Success && s.TotalTime < config.DefaultProofDeadline
}

// Tracker keeps the most recent samples in a fixed-size rolling window.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	window  int
	samples []Sample
	store   *Store
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithWindow overrides the rolling window size.
func WithWindow(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.window = n
		}
	}
}

// WithStore attaches a persistent store; every recorded sample is also
// written there.
func WithStore(st *Store) TrackerOption {
	return func(t *Tracker) { t.store = st }
}

// NewTracker creates a tracker with the default window size.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{window: DefaultWindow}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a sample to the window, evicting the oldest when full, and
// persists it when a store is attached. Persistence failures are logged and
// do not affect the in-memory window.
func (t *Tracker) Record(s Sample) {
	if s.At.IsZero() {
		s.At = time.Now()
	}
	t.mu.Lock()
	t.samples = append(t.samples, s)
	if len(t.samples) > t.window {
		t.samples = t.samples[len(t.samples)-t.window:]
	}
	store := t.store
	t.mu.Unlock()
	if store != nil {
		if err := store.Put(s); err != nil {
			log.Warnw("could not persist proof sample", "error", err.Error())
		}
	}
}

// Len returns the number of samples currently in the window.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Summary is a JSON-ready aggregate over the tracker's window.
type Summary struct {
	Count                  int     `json:"count"`
	Successes              int     `json:"successes"`
	SuccessRate            float64 `json:"successRate"`
	WithinDeadline         int     `json:"withinDeadline"`
	AvgProofTimeSeconds    float64 `json:"avgProofTimeSeconds"`
	AvgOverheadTimeSeconds float64 `json:"avgOverheadTimeSeconds"`
	AvgTotalTimeSeconds    float64 `json:"avgTotalTimeSeconds"`
	MaxTotalTimeSeconds    float64 `json:"maxTotalTimeSeconds"`
}

// Summary aggregates the current window. A zero-sample summary has all
// fields zero rather than NaNs.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	sum := Summary{Count: len(t.samples)}
	if sum.Count == 0 {
		return sum
	}
	var proof, overhead, total time.Duration
	var maxTotal time.Duration
	for _, s := range t.samples {
		proof += s.ProofTime
		overhead += s.OverheadTime
		total += s.TotalTime
		if s.TotalTime > maxTotal {
			maxTotal = s.TotalTime
		}
		if s.Success {
			sum.Successes++
		}
		if s.WithinDeadline() {
			sum.WithinDeadline++
		}
	}
	n := float64(sum.Count)
	sum.SuccessRate = float64(sum.Successes) / n
	sum.AvgProofTimeSeconds = proof.Seconds() / n
	sum.AvgOverheadTimeSeconds = overhead.Seconds() / n
	sum.AvgTotalTimeSeconds = total.Seconds() / n
	sum.MaxTotalTimeSeconds = maxTotal.Seconds()
	return sum
}

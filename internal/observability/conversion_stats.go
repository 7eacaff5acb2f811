// Package observability provides run-level statistics for conversion
// batches: which shift branches fired, how large the shifts were, and
// where failures clustered.
package observability

import (
	"math"
	"sync"
	"time"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// ConversionStats accumulates per-session outcomes across a batch run.
// All methods are thread-safe; one tracker is shared by the batch workers.
type ConversionStats struct {
	mu        sync.RWMutex
	started   time.Time
	converted int64
	skipped   int64
	branches  map[types.AlignmentBranch]int64
	failures  map[string]int64

	shiftCount int64
	shiftSum   float64
	shiftMin   float64
	shiftMax   float64
}

// Summary is an immutable snapshot of a tracker.
type Summary struct {
	Converted int64
	Skipped   int64
	Failed    int64
	Branches  map[types.AlignmentBranch]int64
	Failures  map[string]int64
	Elapsed   time.Duration

	// Shift statistics over converted sessions, in seconds.
	ShiftMean float64
	ShiftMin  float64
	ShiftMax  float64
}

// NewConversionStats creates an empty tracker.
func NewConversionStats() *ConversionStats {
	return &ConversionStats{
		started:  time.Now(),
		branches: make(map[types.AlignmentBranch]int64),
		failures: make(map[string]int64),
		shiftMin: math.Inf(1),
		shiftMax: math.Inf(-1),
	}
}

// RecordConversion records a successful conversion and its diagnostics.
func (s *ConversionStats) RecordConversion(branch types.AlignmentBranch, timeShift float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.converted++
	s.branches[branch]++
	s.shiftCount++
	s.shiftSum += timeShift
	if timeShift < s.shiftMin {
		s.shiftMin = timeShift
	}
	if timeShift > s.shiftMax {
		s.shiftMax = timeShift
	}
}

// RecordSkip records a session skipped because its sources were already
// converted.
func (s *ConversionStats) RecordSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped++
}

// RecordFailure records a failed conversion under its error code. Errors
// without a ConversionError in their chain count under "UNKNOWN".
func (s *ConversionStats) RecordFailure(err error) {
	code := types.GetCode(err)
	if code == "" {
		code = "UNKNOWN"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[code]++
}

// Snapshot returns a copy of the accumulated statistics.
func (s *ConversionStats) Snapshot() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		Converted: s.converted,
		Skipped:   s.skipped,
		Branches:  make(map[types.AlignmentBranch]int64, len(s.branches)),
		Failures:  make(map[string]int64, len(s.failures)),
		Elapsed:   time.Since(s.started),
	}
	for b, n := range s.branches {
		sum.Branches[b] = n
	}
	for code, n := range s.failures {
		sum.Failures[code] = n
		sum.Failed += n
	}
	if s.shiftCount > 0 {
		sum.ShiftMean = s.shiftSum / float64(s.shiftCount)
		sum.ShiftMin = s.shiftMin
		sum.ShiftMax = s.shiftMax
	}
	return sum
}

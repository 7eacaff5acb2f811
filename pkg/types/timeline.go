// Package types provides core data types for the session conversion pipeline.
package types

import (
	"fmt"
	"math"
)

// Timeline is an ordered sequence of timestamps in seconds, all expressed
// relative to one acquisition clock's epoch. Timelines are immutable once
// parsed: Shift returns a view that shares the underlying samples and
// carries an additive offset, so shifting a multi-million-sample recording
// clock costs O(1) and allocates nothing.
type Timeline struct {
	base   []float64
	offset float64
}

// NewTimeline wraps a timestamp slice. The slice is owned by the timeline
// after this call and must not be mutated by the caller.
func NewTimeline(samples []float64) Timeline {
	return Timeline{base: samples}
}

// Len returns the number of timestamps.
func (t Timeline) Len() int {
	return len(t.base)
}

// IsEmpty reports whether the timeline holds no timestamps.
func (t Timeline) IsEmpty() bool {
	return len(t.base) == 0
}

// At returns the i-th timestamp with the shift applied.
func (t Timeline) At(i int) float64 {
	return t.base[i] + t.offset
}

// First returns the first timestamp. Panics on an empty timeline;
// callers validate emptiness up front (see ClockPair.Validate).
func (t Timeline) First() float64 {
	return t.base[0] + t.offset
}

// Last returns the final timestamp.
func (t Timeline) Last() float64 {
	return t.base[len(t.base)-1] + t.offset
}

// Offset returns the accumulated additive shift of this view.
func (t Timeline) Offset() float64 {
	return t.offset
}

// Shift returns a view of the timeline moved by delta seconds.
// The underlying samples are shared, not copied.
func (t Timeline) Shift(delta float64) Timeline {
	return Timeline{base: t.base, offset: t.offset + delta}
}

// Min returns the smallest timestamp in the timeline. For a monotonic
// timeline this equals First; the scan exists so the negative-timestamp
// check does not silently trust monotonicity of raw inputs.
func (t Timeline) Min() float64 {
	min := math.Inf(1)
	for _, v := range t.base {
		if v < min {
			min = v
		}
	}
	return min + t.offset
}

// IsMonotonic reports whether timestamps are non-decreasing.
// NaN anywhere in the timeline fails the check.
func (t Timeline) IsMonotonic() bool {
	for i, v := range t.base {
		if math.IsNaN(v) {
			return false
		}
		if i > 0 && v < t.base[i-1] {
			return false
		}
	}
	return true
}

// Materialize realizes the shifted timestamps into a new slice.
// Used only at write time; alignment itself never materializes.
func (t Timeline) Materialize() []float64 {
	out := make([]float64, len(t.base))
	for i, v := range t.base {
		out[i] = v + t.offset
	}
	return out
}

// ClockPair holds the primary (behavioral controller, authoritative) and
// secondary (any other acquisition device) marker timelines for one session.
// The two timelines mark the same physical occurrences, aligned by index.
type ClockPair struct {
	Primary   Timeline
	Secondary Timeline
}

// Validate enforces the marker-extraction contract: both timelines
// non-empty and of equal length. Violations are fatal input errors, not
// conditions the alignment engine recovers from.
func (p ClockPair) Validate() error {
	if p.Primary.IsEmpty() || p.Secondary.IsEmpty() {
		return NewAlignmentError(CodeInputMismatch, "marker timelines must be non-empty")
	}
	if p.Primary.Len() != p.Secondary.Len() {
		return NewAlignmentError(CodeInputMismatch,
			fmt.Sprintf("marker count mismatch: primary has %d, secondary has %d",
				p.Primary.Len(), p.Secondary.Len()))
	}
	return nil
}

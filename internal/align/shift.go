// Package align implements the clock alignment engine. Each recording
// session is captured by independently clocked systems: the behavioral
// controller (primary, authoritative) and one or more acquisition devices
// (secondary). Both sides observe the same physical trial-start markers;
// the engine computes a single additive offset from the first marker pair
// and applies one of three shift-policy branches so that every timeline in
// the session ends up on one common frame.
package align

import (
	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// Tolerance is the floating-point tolerance, in seconds, for the marker
// coincidence postcondition and the negative-timestamp floor.
const Tolerance = 1e-6

// ComputeTimeShift returns the offset that moves the secondary clock onto
// the primary clock: primary first marker minus secondary first marker.
// Only the first corresponding marker is used. Both clocks run at the same
// nominal rate, so the clocks differ by a constant additive offset and no
// drift term is modeled; a fit over all markers would only average in the
// detection jitter of later pulses.
//
// The result may be negative, zero, or positive. The only error condition
// is an invalid pair (empty or length-mismatched marker timelines).
func ComputeTimeShift(pair types.ClockPair) (float64, error) {
	if err := pair.Validate(); err != nil {
		return 0, err
	}
	return pair.Primary.First() - pair.Secondary.First(), nil
}

// Classify selects the shift-policy branch for a computed shift and the
// secondary source's own first raw-sample timestamp. It is pure and total:
// every (delta, secondaryFirstSample) pair maps to exactly one branch.
//
// Case 1: delta < 0 and secondaryFirstSample + delta < 0. Shifting the
// secondary side would push its sample clock below zero, which recording
// devices must never see. The primary side is rebased instead.
//
// Case 2: delta < 0 with a non-negative candidate first sample, and
// case 3: delta >= 0, both shift the secondary side forward by delta.
func Classify(delta, secondaryFirstSample float64) types.AlignmentBranch {
	if delta < 0 {
		if secondaryFirstSample+delta < 0 {
			return types.BranchRebasePrimary
		}
		return types.BranchShiftSecondary
	}
	return types.BranchShiftSecondaryForward
}

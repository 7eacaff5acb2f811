package types

import "time"

// RecordingKind identifies the class of secondary acquisition device.
type RecordingKind string

const (
	RecordingPhotometry RecordingKind = "photometry"
	RecordingEphys      RecordingKind = "ephys"
	RecordingVideo      RecordingKind = "video"
)

// Recording is one secondary acquisition source: a raw sample clock, the
// per-trial marker timeline derived from it (same clock), and any auxiliary
// timestamp series that share that clock (camera TTLs, frame times).
// All timelines here move together when the alignment shift is applied.
type Recording struct {
	Name    string
	Kind    RecordingKind
	Samples Timeline
	Markers Timeline
	Aux     map[string]Timeline
}

// Shift returns a copy of the recording with every timeline moved by delta.
// Timeline views share their sample storage, so this is O(#series).
func (r Recording) Shift(delta float64) Recording {
	shifted := Recording{
		Name:    r.Name,
		Kind:    r.Kind,
		Samples: r.Samples.Shift(delta),
		Markers: r.Markers.Shift(delta),
	}
	if r.Aux != nil {
		shifted.Aux = make(map[string]Timeline, len(r.Aux))
		for name, tl := range r.Aux {
			shifted.Aux[name] = tl.Shift(delta)
		}
	}
	return shifted
}

// RawSession bundles everything parsed from one recording session before
// alignment: the behavioral controller's clock (trial times, reference epoch,
// per-trial relative tables) and the secondary recordings in their own clocks.
type RawSession struct {
	SessionID string
	SubjectID string

	// Epoch is the absolute wall-clock instant of primary-clock zero
	// (the controller's session start time).
	Epoch time.Time

	// TrialStarts/TrialStops are in the primary clock, one entry per trial.
	TrialStarts Timeline
	TrialStops  Timeline

	// Per-trial tables with offsets relative to their trial's start.
	States  []StateInterval
	Events  []TrialEvent
	Actions []TrialAction

	// TrialParams holds per-trial task settings keyed by source field name.
	TrialParams []map[string]interface{}

	// Metadata is the descriptive session metadata, already merged over
	// the lab defaults (see internal/metadata).
	Metadata SessionMetadata

	Recordings []Recording
}

// AlignedSession is the final bundle handed to the sink: the (possibly
// shifted) reference epoch and every timeline and table of the session
// expressed in one common aligned frame. It is assembled once by the
// alignment engine and never mutated afterward.
type AlignedSession struct {
	SessionID string
	SubjectID string

	Epoch time.Time

	// TimeShift and Branch are diagnostic values: re-derivable, but kept
	// for audit since silent sign errors are the dominant failure mode.
	TimeShift float64
	Branch    AlignmentBranch

	TrialStarts Timeline
	TrialStops  Timeline

	// Absolute tables in the aligned frame (see internal/trials).
	States  []StateRow
	Events  []EventRow
	Actions []ActionRow

	TrialParams []map[string]interface{}

	Metadata SessionMetadata

	Recordings []Recording
}

// AlignmentBranch records which case of the shift policy was selected.
// Always reported, even on success, so operators can audit sign handling.
type AlignmentBranch int

const (
	// BranchRebasePrimary (case 1): the secondary clock cannot be shifted
	// without producing negative sample times, so the session is rebased
	// onto the secondary clock frame: every primary-clock series moves
	// forward by |shift| and the reference epoch moves backward by the
	// same amount. Secondary timelines are untouched.
	BranchRebasePrimary AlignmentBranch = 1

	// BranchShiftSecondary (case 2): negative shift applied to every
	// secondary-clock series; primary and epoch unchanged.
	BranchShiftSecondary AlignmentBranch = 2

	// BranchShiftSecondaryForward (case 3): non-negative shift applied to
	// every secondary-clock series; primary and epoch unchanged. Shares a
	// direction with case 2; case 1 is the sole exception where the
	// opposite side moves.
	BranchShiftSecondaryForward AlignmentBranch = 3
)

// ShiftPolicy is the side of the session that moves for a given branch.
type ShiftPolicy int

const (
	ShiftSecondaryForward ShiftPolicy = iota
	ShiftPrimaryBackward
)

// Policy maps the branch to the side that moves.
func (b AlignmentBranch) Policy() ShiftPolicy {
	if b == BranchRebasePrimary {
		return ShiftPrimaryBackward
	}
	return ShiftSecondaryForward
}

func (b AlignmentBranch) String() string {
	switch b {
	case BranchRebasePrimary:
		return "rebase-primary"
	case BranchShiftSecondary:
		return "shift-secondary"
	case BranchShiftSecondaryForward:
		return "shift-secondary-forward"
	default:
		return "unknown"
	}
}

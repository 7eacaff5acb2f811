package types

// The behavioral controller logs task structure per trial: state machine
// intervals, discrete input events, and output actions, each stamped
// relative to its trial's start. The types below carry those relative
// offsets; internal/trials reconstructs absolute times after alignment.

// StateInterval is one state machine visit within a trial.
// Start/Stop are seconds relative to the trial start. Either bound may be
// NaN when the state was never entered; such rows are skipped downstream.
type StateInterval struct {
	Trial int
	Name  string
	Start float64
	Stop  float64
}

// TrialEvent is one discrete input event (port poke, timer expiry) within
// a trial, with its offset relative to the trial start.
type TrialEvent struct {
	Trial  int
	Name   string
	Offset float64
	Value  string
}

// TrialAction is one task output action (sound, valve) within a trial.
type TrialAction struct {
	Trial  int
	Name   string
	Offset float64
	Value  string
}

// StateRow is a state machine visit with absolute times in the aligned frame.
type StateRow struct {
	Trial int
	Name  string
	Start float64
	Stop  float64
}

// EventRow is a discrete event with its absolute time in the aligned frame.
type EventRow struct {
	Trial int
	Name  string
	Time  float64
	Value string
}

// ActionRow is an output action with its absolute time in the aligned frame.
type ActionRow struct {
	Trial int
	Name  string
	Time  float64
	Value string
}

// ColumnSpec maps a source field name to its archived column name and
// description. These are configuration data, not behavior: conversions
// declare lookup tables of ColumnSpec rather than renaming in code.
type ColumnSpec struct {
	Name        string
	Description string
}

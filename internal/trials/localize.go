// Package trials reconstructs absolute trial tables from the behavioral
// controller's per-trial relative offsets. Localization runs after clock
// alignment, against the aligned trial-start timeline, so the produced rows
// are directly comparable with secondary recording timestamps.
package trials

import (
	"fmt"
	"math"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// LocalizeStates converts relative state intervals into absolute rows:
// absolute = aligned trial start + relative offset. Intervals with a NaN
// bound belong to states the trial never entered and are dropped.
func LocalizeStates(starts types.Timeline, states []types.StateInterval) ([]types.StateRow, error) {
	rows := make([]types.StateRow, 0, len(states))
	for _, s := range states {
		if s.Trial < 0 || s.Trial >= starts.Len() {
			return nil, badTrialIndex("state", s.Name, s.Trial, starts.Len())
		}
		if math.IsNaN(s.Start) || math.IsNaN(s.Stop) {
			continue
		}
		t0 := starts.At(s.Trial)
		rows = append(rows, types.StateRow{
			Trial: s.Trial,
			Name:  s.Name,
			Start: t0 + s.Start,
			Stop:  t0 + s.Stop,
		})
	}
	return rows, nil
}

// LocalizeEvents converts relative events into absolute rows.
func LocalizeEvents(starts types.Timeline, events []types.TrialEvent) ([]types.EventRow, error) {
	rows := make([]types.EventRow, 0, len(events))
	for _, e := range events {
		if e.Trial < 0 || e.Trial >= starts.Len() {
			return nil, badTrialIndex("event", e.Name, e.Trial, starts.Len())
		}
		if math.IsNaN(e.Offset) {
			continue
		}
		rows = append(rows, types.EventRow{
			Trial: e.Trial,
			Name:  e.Name,
			Time:  starts.At(e.Trial) + e.Offset,
			Value: e.Value,
		})
	}
	return rows, nil
}

// LocalizeActions converts relative output actions into absolute rows.
func LocalizeActions(starts types.Timeline, actions []types.TrialAction) ([]types.ActionRow, error) {
	rows := make([]types.ActionRow, 0, len(actions))
	for _, a := range actions {
		if a.Trial < 0 || a.Trial >= starts.Len() {
			return nil, badTrialIndex("action", a.Name, a.Trial, starts.Len())
		}
		if math.IsNaN(a.Offset) {
			continue
		}
		rows = append(rows, types.ActionRow{
			Trial: a.Trial,
			Name:  a.Name,
			Time:  starts.At(a.Trial) + a.Offset,
			Value: a.Value,
		})
	}
	return rows, nil
}

func badTrialIndex(kind, name string, trial, n int) error {
	return types.NewInputError(types.CodeInputMismatch,
		fmt.Sprintf("trials: %s %q references trial %d, session has %d trials", kind, name, trial, n), nil)
}

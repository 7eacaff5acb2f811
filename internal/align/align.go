package align

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/trials"
	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// Aligner applies the shift policy to a parsed session and assembles the
// aligned bundle. It holds no per-session state; one Aligner serves a
// whole batch.
type Aligner struct {
	log zerolog.Logger
}

// New creates an Aligner that reports shift diagnostics through log.
func New(log zerolog.Logger) *Aligner {
	return &Aligner{log: log}
}

// Align computes the session's time shift from the first marker pair,
// selects the policy branch, shifts the appropriate side, and returns the
// session with every timeline and table in one common frame.
//
// The first recording is the synchronization reference; all recordings
// share the secondary acquisition clock and move together. Any failure is
// fatal for the session: no partially aligned result is ever returned.
func (a *Aligner) Align(raw *types.RawSession) (*types.AlignedSession, error) {
	if len(raw.Recordings) == 0 {
		return nil, types.NewAlignmentError(types.CodeInputMismatch,
			"session has no secondary recordings to align against")
	}
	if raw.TrialStops.Len() != raw.TrialStarts.Len() {
		return nil, types.NewAlignmentError(types.CodeInputMismatch,
			fmt.Sprintf("trial stop count %d does not match trial start count %d",
				raw.TrialStops.Len(), raw.TrialStarts.Len()))
	}

	ref := raw.Recordings[0]
	if err := a.checkMonotonic(raw, ref); err != nil {
		return nil, err
	}

	pair := types.ClockPair{Primary: raw.TrialStarts, Secondary: ref.Markers}
	delta, err := ComputeTimeShift(pair)
	if err != nil {
		return nil, err
	}
	branch := Classify(delta, firstSample(ref))

	aligned := &types.AlignedSession{
		SessionID:   raw.SessionID,
		SubjectID:   raw.SubjectID,
		Epoch:       raw.Epoch,
		TimeShift:   delta,
		Branch:      branch,
		TrialStarts: raw.TrialStarts,
		TrialStops:  raw.TrialStops,
		Metadata:    raw.Metadata,
		Recordings:  raw.Recordings,
	}

	switch branch.Policy() {
	case types.ShiftPrimaryBackward:
		// Rebase onto the secondary clock frame. Every primary-clock
		// series moves forward by |delta| and the reference epoch moves
		// backward by the same amount, so the absolute instant of every
		// trial is preserved. Secondary timelines stay put.
		aligned.TrialStarts = raw.TrialStarts.Shift(-delta)
		aligned.TrialStops = raw.TrialStops.Shift(-delta)
		aligned.Epoch = raw.Epoch.Add(time.Duration(delta * float64(time.Second)))
		if min := aligned.TrialStarts.Min(); min < -Tolerance {
			return nil, types.NewAlignmentError(types.CodeAlignmentImpossible,
				"rebasing the behavioral clock still yields negative trial times").
				WithDetails(map[string]interface{}{
					"time_shift":             delta,
					"primary_first_marker":   pair.Primary.First(),
					"secondary_first_marker": pair.Secondary.First(),
					"min_trial_start":        min,
				})
		}
	case types.ShiftSecondaryForward:
		shifted := make([]types.Recording, len(raw.Recordings))
		for i, rec := range raw.Recordings {
			shifted[i] = rec.Shift(delta)
		}
		aligned.Recordings = shifted
	}

	if err := a.verify(aligned, pair, delta); err != nil {
		return nil, err
	}

	states, err := trials.LocalizeStates(aligned.TrialStarts, raw.States)
	if err != nil {
		return nil, err
	}
	events, err := trials.LocalizeEvents(aligned.TrialStarts, raw.Events)
	if err != nil {
		return nil, err
	}
	actions, err := trials.LocalizeActions(aligned.TrialStarts, raw.Actions)
	if err != nil {
		return nil, err
	}
	aligned.States = states
	aligned.Events = events
	aligned.Actions = actions
	columns := trials.ParamColumns
	if len(raw.Metadata.Columns) > 0 {
		columns = trials.MergeColumns(raw.Metadata.Columns)
	}
	aligned.TrialParams = trials.NormalizeParamsWith(raw.TrialParams, columns)

	// The shift and branch are reported even on success. Silent sign
	// errors are the dominant failure mode of clock alignment, and a
	// log trail is what lets an operator audit a suspect session later.
	a.log.Info().
		Str("session_id", raw.SessionID).
		Float64("time_shift", delta).
		Stringer("branch", branch).
		Int("trials", aligned.TrialStarts.Len()).
		Int("recordings", len(aligned.Recordings)).
		Msg("session aligned")

	return aligned, nil
}

func (a *Aligner) checkMonotonic(raw *types.RawSession, ref types.Recording) error {
	if !raw.TrialStarts.IsMonotonic() {
		return types.NewInputError(types.CodeNotMonotonic,
			"behavioral trial start times are not monotonically non-decreasing", nil)
	}
	if !ref.Markers.IsMonotonic() {
		return types.NewInputError(types.CodeNotMonotonic,
			fmt.Sprintf("recording %q marker times are not monotonically non-decreasing", ref.Name), nil)
	}
	return nil
}

// verify enforces the alignment postconditions: the first markers of both
// clocks coincide within Tolerance, and no secondary-clock timestamp ends
// up negative. Recording hardware counts time from zero, so a negative
// secondary timestamp means the shift arithmetic went wrong somewhere.
func (a *Aligner) verify(aligned *types.AlignedSession, pair types.ClockPair, delta float64) error {
	primaryFirst := aligned.TrialStarts.First()
	secondaryFirst := aligned.Recordings[0].Markers.First()
	if math.Abs(primaryFirst-secondaryFirst) > Tolerance {
		return types.NewAlignmentError(types.CodeAlignmentImpossible,
			"first markers do not coincide after applying the shift").
			WithDetails(map[string]interface{}{
				"time_shift":             delta,
				"primary_first_marker":   pair.Primary.First(),
				"secondary_first_marker": pair.Secondary.First(),
				"aligned_primary":        primaryFirst,
				"aligned_secondary":      secondaryFirst,
			})
	}
	for _, rec := range aligned.Recordings {
		for name, tl := range recordingSeries(rec) {
			if tl.IsEmpty() {
				continue
			}
			if min := tl.Min(); min < -Tolerance {
				return types.NewAlignmentError(types.CodeNegativeTimestamp,
					fmt.Sprintf("recording %q series %q has negative timestamps after alignment", rec.Name, name)).
					WithDetails(map[string]interface{}{
						"time_shift":    delta,
						"recording":     rec.Name,
						"series":        name,
						"min_timestamp": min,
					})
			}
		}
	}
	return nil
}

// recordingSeries enumerates every timeline of a recording under a stable
// label for error reporting.
func recordingSeries(rec types.Recording) map[string]types.Timeline {
	series := map[string]types.Timeline{
		"samples": rec.Samples,
		"markers": rec.Markers,
	}
	for name, tl := range rec.Aux {
		series["aux:"+name] = tl
	}
	return series
}

// firstSample returns the timestamp that decides whether the secondary
// clock can absorb a negative shift. Recordings without a raw sample clock
// fall back to their marker timeline.
func firstSample(rec types.Recording) float64 {
	if !rec.Samples.IsEmpty() {
		return rec.Samples.First()
	}
	return rec.Markers.First()
}

// Package behavior parses behavioral controller session exports. A session
// export is one JSON document per recording session carrying the trial
// timestamps, the per-trial state machine log, and the task settings. All
// times in the export are in the controller's own clock: trial timestamps
// are relative to the session start, and everything inside a trial is
// relative to that trial's start.
package behavior

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// sessionDoc mirrors the export layout. Interval and offset fields decode
// through json.RawMessage because single visits are exported flat while
// repeated visits come as lists, and unvisited states come as nulls.
type sessionDoc struct {
	Info struct {
		Subject             string `json:"Subject"`
		SessionDate         string `json:"SessionDate"`
		SessionStartTimeUTC string `json:"SessionStartTime_UTC"`
	} `json:"Info"`
	NTrials             int       `json:"nTrials"`
	TrialStartTimestamp []float64 `json:"TrialStartTimestamp"`
	TrialEndTimestamp   []float64 `json:"TrialEndTimestamp"`
	RawEvents           struct {
		Trial []trialDoc `json:"Trial"`
	} `json:"RawEvents"`
	TrialSettings []map[string]interface{} `json:"TrialSettings"`
}

type trialDoc struct {
	States  map[string]json.RawMessage `json:"States"`
	Events  map[string]json.RawMessage `json:"Events"`
	Outputs map[string]json.RawMessage `json:"Outputs"`
}

const (
	dateLayout = "02-Jan-2006"
	timeLayout = "15:04:05"
)

// ParseSessionFile reads and parses one session export.
func ParseSessionFile(path string) (*types.RawSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("behavior: open session export %s", path), err)
	}
	defer f.Close()
	return ParseSession(f)
}

// ParseSession parses a session export into the raw (pre-alignment) form.
// The returned session has no recordings attached; acquisition sources are
// parsed separately and appended by the pipeline.
func ParseSession(r io.Reader) (*types.RawSession, error) {
	var doc sessionDoc
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, types.NewInputError(types.CodeParseFailed,
			"behavior: decode session export", err)
	}

	epoch, err := parseEpoch(doc)
	if err != nil {
		return nil, err
	}
	if len(doc.TrialStartTimestamp) == 0 {
		return nil, types.NewInputError(types.CodeMissingField,
			"behavior: session export has no TrialStartTimestamp", nil)
	}
	if len(doc.TrialEndTimestamp) != len(doc.TrialStartTimestamp) {
		return nil, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("behavior: %d trial ends for %d trial starts",
				len(doc.TrialEndTimestamp), len(doc.TrialStartTimestamp)), nil)
	}
	if doc.NTrials != 0 && doc.NTrials != len(doc.TrialStartTimestamp) {
		return nil, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("behavior: nTrials is %d but %d trial starts present",
				doc.NTrials, len(doc.TrialStartTimestamp)), nil)
	}

	session := &types.RawSession{
		SubjectID:   doc.Info.Subject,
		SessionID:   fmt.Sprintf("%s-%s", doc.Info.Subject, epoch.Format("2006-01-02")),
		Epoch:       epoch,
		TrialStarts: types.NewTimeline(doc.TrialStartTimestamp),
		TrialStops:  types.NewTimeline(doc.TrialEndTimestamp),
		TrialParams: trialParams(doc.TrialSettings),
	}

	for i, trial := range doc.RawEvents.Trial {
		states, err := parseStates(i, trial.States)
		if err != nil {
			return nil, err
		}
		session.States = append(session.States, states...)

		events, err := parseOffsets(i, trial.Events, eventValue)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			session.Events = append(session.Events, types.TrialEvent(e))
		}

		actions, err := parseOffsets(i, trial.Outputs, func(string) string { return "On" })
		if err != nil {
			return nil, err
		}
		for _, a := range actions {
			session.Actions = append(session.Actions, types.TrialAction(a))
		}
	}
	return session, nil
}

func parseEpoch(doc sessionDoc) (time.Time, error) {
	if doc.Info.SessionDate == "" || doc.Info.SessionStartTimeUTC == "" {
		return time.Time{}, types.NewInputError(types.CodeMissingField,
			"behavior: session export is missing SessionDate or SessionStartTime_UTC", nil)
	}
	day, err := time.Parse(dateLayout, doc.Info.SessionDate)
	if err != nil {
		return time.Time{}, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("behavior: parse SessionDate %q", doc.Info.SessionDate), err)
	}
	clock, err := time.Parse(timeLayout, doc.Info.SessionStartTimeUTC)
	if err != nil {
		return time.Time{}, types.NewInputError(types.CodeParseFailed,
			fmt.Sprintf("behavior: parse SessionStartTime_UTC %q", doc.Info.SessionStartTimeUTC), err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, time.UTC), nil
}

// parseStates decodes one trial's state intervals. A state value is either
// one [start, stop] pair or a list of pairs for repeated visits; null
// bounds mark states the trial never reached and become NaN.
func parseStates(trial int, states map[string]json.RawMessage) ([]types.StateInterval, error) {
	var out []types.StateInterval
	for name, raw := range states {
		pairs, err := decodePairs(raw)
		if err != nil {
			return nil, types.NewInputError(types.CodeParseFailed,
				fmt.Sprintf("behavior: trial %d state %q", trial, name), err)
		}
		for _, p := range pairs {
			out = append(out, types.StateInterval{
				Trial: trial, Name: name, Start: p[0], Stop: p[1],
			})
		}
	}
	return out, nil
}

type offsetRow struct {
	Trial  int
	Name   string
	Offset float64
	Value  string
}

func parseOffsets(trial int, entries map[string]json.RawMessage, value func(string) string) ([]offsetRow, error) {
	var out []offsetRow
	for name, raw := range entries {
		offsets, err := decodeOffsets(raw)
		if err != nil {
			return nil, types.NewInputError(types.CodeParseFailed,
				fmt.Sprintf("behavior: trial %d entry %q", trial, name), err)
		}
		for _, off := range offsets {
			out = append(out, offsetRow{
				Trial: trial, Name: name, Offset: off, Value: value(name),
			})
		}
	}
	return out, nil
}

// decodePairs accepts [a, b] or [[a, b], [c, d], ...], with null for NaN.
// The flat form is tried first: [null, null] decodes as both shapes and
// means one unvisited interval, not a list of empty ones.
func decodePairs(raw json.RawMessage) ([][2]float64, error) {
	var flat []*float64
	if err := json.Unmarshal(raw, &flat); err == nil && len(flat) == 2 {
		pair, err := toPair(flat)
		if err != nil {
			return nil, err
		}
		return [][2]float64{pair}, nil
	}
	var nested [][]*float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, err
	}
	out := make([][2]float64, 0, len(nested))
	for _, p := range nested {
		pair, err := toPair(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, nil
}

func toPair(p []*float64) ([2]float64, error) {
	if len(p) != 2 {
		return [2]float64{}, fmt.Errorf("interval has %d bounds, want 2", len(p))
	}
	return [2]float64{deref(p[0]), deref(p[1])}, nil
}

// decodeOffsets accepts a single offset or a list of offsets; null entries
// (never-fired events) are dropped.
func decodeOffsets(raw json.RawMessage) ([]float64, error) {
	var list []*float64
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]float64, 0, len(list))
		for _, v := range list {
			if v != nil {
				out = append(out, *v)
			}
		}
		return out, nil
	}
	var single float64
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []float64{single}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// trialParams extracts per-trial task settings. Settings rows that nest
// their values under a GUI object are flattened to that object.
func trialParams(settings []map[string]interface{}) []map[string]interface{} {
	if len(settings) == 0 {
		return nil
	}
	out := make([]map[string]interface{}, len(settings))
	for i, row := range settings {
		if gui, ok := row["GUI"].(map[string]interface{}); ok {
			out[i] = gui
			continue
		}
		out[i] = row
	}
	return out
}

// eventValue decodes a state machine event name into its archived value.
// Port events carry the crossing direction; timer events mark expiry.
func eventValue(name string) string {
	switch {
	case strings.HasSuffix(name, "In"):
		return "In"
	case strings.HasSuffix(name, "Out"):
		return "Out"
	case name == "Tup" || strings.HasSuffix(name, "_End"):
		return "Expired"
	case strings.HasSuffix(name, "_Start"):
		return "Started"
	default:
		return ""
	}
}

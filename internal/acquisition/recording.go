package acquisition

import (
	"fmt"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// NewPhotometryRecording builds the alignment view of a photometry export.
// The digital line named by markerChannel carries the trial-start TTLs and
// becomes the marker timeline; every other digital line becomes an
// auxiliary rising-edge timeline on the same clock (camera frame strobes,
// lick sensors).
func NewPhotometryRecording(name string, data *PhotometryData, markerChannel string) (types.Recording, error) {
	line, ok := data.Digital[markerChannel]
	if !ok {
		return types.Recording{}, types.NewInputError(types.CodeMissingField,
			fmt.Sprintf("acquisition: photometry export has no digital line %q", markerChannel), nil)
	}
	markers := RisingEdges(data.Time, line, DefaultThreshold)
	if len(markers) == 0 {
		return types.Recording{}, types.NewInputError(types.CodeMissingField,
			fmt.Sprintf("acquisition: digital line %q has no trial marker pulses", markerChannel), nil)
	}

	rec := types.Recording{
		Name:    name,
		Kind:    types.RecordingPhotometry,
		Samples: types.NewTimeline(data.Time),
		Markers: types.NewTimeline(markers),
	}
	for channel, signal := range data.Digital {
		if channel == markerChannel {
			continue
		}
		edges := RisingEdges(data.Time, signal, DefaultThreshold)
		if len(edges) == 0 {
			continue
		}
		if rec.Aux == nil {
			rec.Aux = make(map[string]types.Timeline)
		}
		rec.Aux[channel] = types.NewTimeline(edges)
	}
	return rec, nil
}

// NewEphysRecording builds the alignment view of an extracellular
// recording whose sample times and trial marker times were extracted
// upstream, both on the acquisition system's clock.
func NewEphysRecording(name string, sampleTimes, markerTimes []float64) (types.Recording, error) {
	if len(markerTimes) == 0 {
		return types.Recording{}, types.NewInputError(types.CodeMissingField,
			fmt.Sprintf("acquisition: ephys recording %q has no trial markers", name), nil)
	}
	return types.Recording{
		Name:    name,
		Kind:    types.RecordingEphys,
		Samples: types.NewTimeline(sampleTimes),
		Markers: types.NewTimeline(markerTimes),
	}, nil
}

// NewVideoRecording builds the alignment view of a behavioral camera:
// per-frame timestamps plus the trial markers observed on the same clock.
func NewVideoRecording(name string, frameTimes, markerTimes []float64) (types.Recording, error) {
	if len(markerTimes) == 0 {
		return types.Recording{}, types.NewInputError(types.CodeMissingField,
			fmt.Sprintf("acquisition: video recording %q has no trial markers", name), nil)
	}
	return types.Recording{
		Name:    name,
		Kind:    types.RecordingVideo,
		Samples: types.NewTimeline(frameTimes),
		Markers: types.NewTimeline(markerTimes),
	}, nil
}

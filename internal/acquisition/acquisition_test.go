package acquisition

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

func TestRisingEdges(t *testing.T) {
	times := []float64{0.0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6}
	signal := []float64{0, 0, 1, 1, 0, 1, 1}
	edges := RisingEdges(times, signal, DefaultThreshold)
	assert.Equal(t, []float64{0.2, 0.5}, edges)
}

func TestRisingEdgesIgnoresInitialHigh(t *testing.T) {
	// A line already high at the first sample is a pulse that began before
	// recording started; its onset time is unknowable.
	times := []float64{0.0, 0.1, 0.2, 0.3}
	signal := []float64{1, 1, 0, 1}
	edges := RisingEdges(times, signal, DefaultThreshold)
	assert.Equal(t, []float64{0.3}, edges)
}

func TestRisingEdgesEmptyAndFlat(t *testing.T) {
	assert.Empty(t, RisingEdges(nil, nil, DefaultThreshold))
	assert.Empty(t, RisingEdges([]float64{0, 1, 2}, []float64{0, 0, 0}, DefaultThreshold))
	assert.Empty(t, RisingEdges([]float64{0, 1, 2}, []float64{1, 1, 1}, DefaultThreshold))
}

const sampleCSV = `Time(s),AIn-1 - Dem (AOut-1),DI/O-1,DI/O-2
0.00,0.101,0,0
0.01,0.102,1,0
0.02,0.105,0,1
0.03,0.103,1,1
0.04,0.099,0,0
`

func TestReadPhotometry(t *testing.T) {
	data, err := ReadPhotometry(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	require.Len(t, data.Time, 5)
	assert.InDelta(t, 0.02, data.Time[2], 1e-9)

	require.Contains(t, data.Analog, "AIn-1 - Dem (AOut-1)")
	assert.Len(t, data.Analog["AIn-1 - Dem (AOut-1)"], 5)

	require.Contains(t, data.Digital, "DI/O-1")
	require.Contains(t, data.Digital, "DI/O-2")
	assert.Equal(t, []float64{0, 0, 1, 1, 0}, data.Digital["DI/O-2"])
}

func TestReadPhotometryErrors(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantCode string
	}{
		{"no time column", "A,B\n1,2\n", types.CodeMissingField},
		{"no samples", "Time(s),DI/O-1\n", types.CodeMissingField},
		{"bad value", "Time(s),DI/O-1\n0.0,high\n", types.CodeParseFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPhotometry(strings.NewReader(tt.csv))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetCode(err))
		})
	}
}

func TestNewPhotometryRecording(t *testing.T) {
	data, err := ReadPhotometry(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	rec, err := NewPhotometryRecording("fiber_photometry", data, "DI/O-2")
	require.NoError(t, err)

	assert.Equal(t, types.RecordingPhotometry, rec.Kind)
	assert.Equal(t, 5, rec.Samples.Len())
	require.Equal(t, 1, rec.Markers.Len())
	assert.InDelta(t, 0.02, rec.Markers.First(), 1e-9)

	// The other digital line becomes an auxiliary timeline on the same clock.
	require.Contains(t, rec.Aux, "DI/O-1")
	assert.Equal(t, 2, rec.Aux["DI/O-1"].Len())
}

func TestNewPhotometryRecordingErrors(t *testing.T) {
	data, err := ReadPhotometry(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	_, err = NewPhotometryRecording("fp", data, "DI/O-9")
	require.Error(t, err)
	assert.Equal(t, types.CodeMissingField, types.GetCode(err))

	flat, err := ReadPhotometry(strings.NewReader("Time(s),DI/O-2\n0.0,0\n0.1,0\n"))
	require.NoError(t, err)
	_, err = NewPhotometryRecording("fp", flat, "DI/O-2")
	require.Error(t, err)
	assert.Equal(t, types.CodeMissingField, types.GetCode(err))
}

func TestNewEphysAndVideoRecordings(t *testing.T) {
	ephys, err := NewEphysRecording("probe0", []float64{0.0, 0.001}, []float64{5.2, 25.1})
	require.NoError(t, err)
	assert.Equal(t, types.RecordingEphys, ephys.Kind)
	assert.InDelta(t, 5.2, ephys.Markers.First(), 1e-9)

	video, err := NewVideoRecording("cam0", []float64{0.0, 0.033}, []float64{5.2})
	require.NoError(t, err)
	assert.Equal(t, types.RecordingVideo, video.Kind)

	_, err = NewEphysRecording("probe0", []float64{0.0}, nil)
	require.Error(t, err)
	_, err = NewVideoRecording("cam0", []float64{0.0}, nil)
	require.Error(t, err)
}

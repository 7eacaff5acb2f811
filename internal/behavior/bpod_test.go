package behavior

import (
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

const sampleExport = `{
  "Info": {
    "Subject": "C005",
    "SessionDate": "15-Jan-2024",
    "SessionStartTime_UTC": "13:30:00"
  },
  "nTrials": 2,
  "TrialStartTimestamp": [19.988, 39.715],
  "TrialEndTimestamp": [38.920, 58.433],
  "RawEvents": {
    "Trial": [
      {
        "States": {
          "WaitForPoke": [0.2, 1.1],
          "Reward": [[1.1, 1.6], [2.3, 2.8]],
          "Punish": [null, null]
        },
        "Events": {
          "Port2In": [0.35, 1.02],
          "Tup": 1.6
        },
        "Outputs": {
          "SoundOutput": 0.2
        }
      },
      {
        "States": {
          "WaitForPoke": [0.4, 2.0]
        },
        "Events": {
          "Port1Out": 0.9
        }
      }
    ]
  },
  "TrialSettings": [
    {"GUI": {"RewardAmount": 24, "side": "L"}},
    {"GUI": {"RewardAmount": 6, "side": "R"}}
  ]
}`

func TestParseSession(t *testing.T) {
	session, err := ParseSession(strings.NewReader(sampleExport))
	require.NoError(t, err)

	assert.Equal(t, "C005", session.SubjectID)
	assert.Equal(t, "C005-2024-01-15", session.SessionID)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC), session.Epoch)

	require.Equal(t, 2, session.TrialStarts.Len())
	assert.InDelta(t, 19.988, session.TrialStarts.First(), 1e-9)
	assert.InDelta(t, 58.433, session.TrialStops.Last(), 1e-9)

	require.Len(t, session.TrialParams, 2)
	assert.Equal(t, "L", session.TrialParams[0]["side"])
	assert.Equal(t, float64(24), session.TrialParams[0]["RewardAmount"])
}

func TestParseSessionStates(t *testing.T) {
	session, err := ParseSession(strings.NewReader(sampleExport))
	require.NoError(t, err)

	byName := map[string][]types.StateInterval{}
	for _, s := range session.States {
		byName[s.Name] = append(byName[s.Name], s)
	}

	// Single visit, flat pair.
	require.Len(t, byName["WaitForPoke"], 2)

	// Repeated visits, list of pairs.
	reward := byName["Reward"]
	require.Len(t, reward, 2)
	sort.Slice(reward, func(i, j int) bool { return reward[i].Start < reward[j].Start })
	assert.InDelta(t, 1.1, reward[0].Start, 1e-9)
	assert.InDelta(t, 2.3, reward[1].Start, 1e-9)

	// Null bounds parse as NaN and stay in the relative table; they are
	// filtered at localization time.
	punish := byName["Punish"]
	require.Len(t, punish, 1)
	assert.True(t, math.IsNaN(punish[0].Start))
	assert.True(t, math.IsNaN(punish[0].Stop))
}

func TestParseSessionEventsAndOutputs(t *testing.T) {
	session, err := ParseSession(strings.NewReader(sampleExport))
	require.NoError(t, err)

	byName := map[string][]types.TrialEvent{}
	for _, e := range session.Events {
		byName[e.Name] = append(byName[e.Name], e)
	}

	require.Len(t, byName["Port2In"], 2)
	assert.Equal(t, "In", byName["Port2In"][0].Value)
	assert.Equal(t, 0, byName["Port2In"][0].Trial)

	require.Len(t, byName["Tup"], 1)
	assert.Equal(t, "Expired", byName["Tup"][0].Value)

	require.Len(t, byName["Port1Out"], 1)
	assert.Equal(t, "Out", byName["Port1Out"][0].Value)
	assert.Equal(t, 1, byName["Port1Out"][0].Trial)

	require.Len(t, session.Actions, 1)
	assert.Equal(t, "SoundOutput", session.Actions[0].Name)
	assert.Equal(t, "On", session.Actions[0].Value)
	assert.InDelta(t, 0.2, session.Actions[0].Offset, 1e-9)
}

func TestParseSessionErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		wantCode string
	}{
		{
			name:     "not json",
			doc:      "not json at all",
			wantCode: types.CodeParseFailed,
		},
		{
			name:     "missing epoch fields",
			doc:      `{"Info": {"Subject": "C005"}, "TrialStartTimestamp": [1.0], "TrialEndTimestamp": [2.0]}`,
			wantCode: types.CodeMissingField,
		},
		{
			name: "no trials",
			doc: `{"Info": {"Subject": "C005", "SessionDate": "15-Jan-2024",
				"SessionStartTime_UTC": "13:30:00"}}`,
			wantCode: types.CodeMissingField,
		},
		{
			name: "trial count mismatch",
			doc: `{"Info": {"Subject": "C005", "SessionDate": "15-Jan-2024",
				"SessionStartTime_UTC": "13:30:00"},
				"TrialStartTimestamp": [1.0, 2.0], "TrialEndTimestamp": [1.5]}`,
			wantCode: types.CodeParseFailed,
		},
		{
			name: "nTrials disagrees",
			doc: `{"Info": {"Subject": "C005", "SessionDate": "15-Jan-2024",
				"SessionStartTime_UTC": "13:30:00"}, "nTrials": 5,
				"TrialStartTimestamp": [1.0, 2.0], "TrialEndTimestamp": [1.5, 2.5]}`,
			wantCode: types.CodeParseFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSession(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.GetCode(err))
			assert.Equal(t, types.ErrCategoryInput, types.GetCategory(err))
		})
	}
}

func TestEventValue(t *testing.T) {
	assert.Equal(t, "In", eventValue("Port1In"))
	assert.Equal(t, "Out", eventValue("Port3Out"))
	assert.Equal(t, "Expired", eventValue("Tup"))
	assert.Equal(t, "Expired", eventValue("GlobalTimer1_End"))
	assert.Equal(t, "Started", eventValue("GlobalTimer1_Start"))
	assert.Equal(t, "", eventValue("SoftCode1"))
}

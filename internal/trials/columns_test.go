package trials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

func TestNormalizeParamsRenamesAndDecodes(t *testing.T) {
	params := []map[string]interface{}{
		{
			"RewardAmount": 24.0,
			"side":         "L",
			"block":        float64(2),
			"hits":         float64(1),
			"vios":         float64(0),
		},
		{
			"RewardAmount": 6.0,
			"side":         "R",
			"block":        float64(1),
			"hits":         float64(0),
			"optout":       float64(1),
		},
	}
	rows := NormalizeParams(params)
	require.Len(t, rows, 2)

	assert.Equal(t, 24.0, rows[0]["reward_volume_ul"])
	assert.Equal(t, "Left", rows[0]["side"])
	assert.Equal(t, "High", rows[0]["block"])
	assert.Equal(t, true, rows[0]["is_rewarded"])
	assert.Equal(t, false, rows[0]["is_violation"])

	assert.Equal(t, "Right", rows[1]["side"])
	assert.Equal(t, "Mixed", rows[1]["block"])
	assert.Equal(t, true, rows[1]["is_opt_out"])
}

func TestNormalizeParamsKeepsUnknownFields(t *testing.T) {
	rows := NormalizeParams([]map[string]interface{}{
		{"NovelTaskVariable": 7.5},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, 7.5, rows[0]["NovelTaskVariable"])
	assert.Empty(t, ColumnDescription("NovelTaskVariable"))
}

func TestNormalizeParamsLeavesUndecodableValuesAlone(t *testing.T) {
	rows := NormalizeParams([]map[string]interface{}{
		{"side": "C", "block": float64(9)},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "C", rows[0]["side"])
	assert.Equal(t, float64(9), rows[0]["block"])
}

func TestMergeColumns(t *testing.T) {
	merged := MergeColumns(map[string]types.ColumnSpec{
		"RewardAmount":   {Description: "Reward volume, calibrated weekly."},
		"stim_frequency": {Name: "stim_frequency_hz", Description: "Stimulation frequency in hertz."},
	})

	// A description-only override keeps the built-in column name.
	assert.Equal(t, "reward_volume_ul", merged["RewardAmount"].Name)
	assert.Equal(t, "Reward volume, calibrated weekly.", merged["RewardAmount"].Description)

	// Fields without overrides keep their built-in spec, and new fields
	// get an entry of their own.
	assert.Equal(t, ParamColumns["side"], merged["side"])
	assert.Equal(t, "stim_frequency_hz", merged["stim_frequency"].Name)

	// ParamColumns itself is untouched.
	assert.NotContains(t, ParamColumns, "stim_frequency")
}

func TestNormalizeParamsWithOverrides(t *testing.T) {
	columns := MergeColumns(map[string]types.ColumnSpec{
		"RewardAmount":   {Name: "reward_ul"},
		"stim_frequency": {Name: "stim_frequency_hz"},
	})
	rows := NormalizeParamsWith([]map[string]interface{}{
		{"RewardAmount": 24.0, "stim_frequency": 20.0, "hits": float64(1)},
	}, columns)
	require.Len(t, rows, 1)

	assert.Equal(t, 24.0, rows[0]["reward_ul"])
	assert.Equal(t, 20.0, rows[0]["stim_frequency_hz"])
	// Value decoding still applies under renamed columns.
	assert.Equal(t, true, rows[0]["is_rewarded"])
}

func TestColumnDescription(t *testing.T) {
	assert.NotEmpty(t, ColumnDescription("RewardAmount"))
	assert.NotEmpty(t, ColumnDescription("wait_time"))
}

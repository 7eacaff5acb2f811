package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

func writeMetadataFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "C005_metadata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultCarriesLabIdentity(t *testing.T) {
	meta := Default()
	assert.NotEmpty(t, meta.Description)
	assert.NotEmpty(t, meta.Institution)
	assert.NotEmpty(t, meta.Lab)
	assert.Equal(t, "Rattus norvegicus", meta.Subject.Species)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeMetadataFile(t, `
session:
  experimenter: Schierek, Jorge
subject:
  description: Wild-type Long-Evans rat.
  sex: F
`)
	meta, err := Load(path)
	require.NoError(t, err)

	// Stated fields win.
	assert.Equal(t, "Schierek, Jorge", meta.Experimenter)
	assert.Equal(t, "F", meta.Subject.Sex)
	assert.Equal(t, "Wild-type Long-Evans rat.", meta.Subject.Description)

	// Everything the file leaves out keeps the default.
	defaults := Default()
	assert.Equal(t, defaults.Description, meta.Description)
	assert.Equal(t, defaults.Institution, meta.Institution)
	assert.Equal(t, defaults.Lab, meta.Lab)
	assert.Equal(t, defaults.Subject.Species, meta.Subject.Species)
}

func TestLoadCollectsColumnOverrides(t *testing.T) {
	path := writeMetadataFile(t, `
columns:
  RewardAmount:
    description: Reward volume in microliters, calibrated weekly.
  stim_frequency:
    name: stim_frequency_hz
    description: Optogenetic stimulation frequency in hertz.
`)
	meta, err := Load(path)
	require.NoError(t, err)
	require.Len(t, meta.Columns, 2)

	// Description-only override leaves the name to the built-in table.
	assert.Equal(t, types.ColumnSpec{
		Description: "Reward volume in microliters, calibrated weekly.",
	}, meta.Columns["RewardAmount"])
	assert.Equal(t, types.ColumnSpec{
		Name:        "stim_frequency_hz",
		Description: "Optogenetic stimulation frequency in hertz.",
	}, meta.Columns["stim_frequency"])
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, types.CodeParseFailed, types.GetCode(err))
	})
	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeMetadataFile(t, "session: [unclosed"))
		require.Error(t, err)
		assert.Equal(t, types.CodeParseFailed, types.GetCode(err))
		assert.Equal(t, types.ErrCategoryInput, types.GetCategory(err))
	})
}

func TestMergeDeepMergesColumns(t *testing.T) {
	base := Default()
	base.Columns = map[string]types.ColumnSpec{
		"RewardAmount": {Name: "reward_volume_ul", Description: "Base description."},
	}
	merged := Merge(base, types.SessionMetadata{
		Lab: "Other Lab",
		Columns: map[string]types.ColumnSpec{
			"RewardAmount": {Description: "Reworded."},
			"side":         {Name: "choice_side"},
		},
	})

	assert.Equal(t, "Other Lab", merged.Lab)
	assert.Equal(t, Default().Institution, merged.Institution)
	assert.Equal(t, types.ColumnSpec{Name: "reward_volume_ul", Description: "Reworded."},
		merged.Columns["RewardAmount"])
	assert.Equal(t, types.ColumnSpec{Name: "choice_side"}, merged.Columns["side"])

	// Merge copies the column map instead of mutating base.
	assert.Equal(t, "Base description.", base.Columns["RewardAmount"].Description)
}

package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/catalog"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/config"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/storage"
	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

const behaviorExport = `{
  "Info": {
    "Subject": "C005",
    "SessionDate": "15-Jan-2024",
    "SessionStartTime_UTC": "13:30:00"
  },
  "nTrials": 2,
  "TrialStartTimestamp": [30.0, 50.0],
  "TrialEndTimestamp": [45.0, 65.0],
  "RawEvents": {
    "Trial": [
      {
        "States": {"WaitForPoke": [0.2, 1.1]},
        "Events": {"Port2In": 0.35}
      },
      {
        "States": {"WaitForPoke": [0.4, 2.0]}
      }
    ]
  },
  "TrialSettings": [
    {"GUI": {"RewardAmount": 24, "side": "L"}},
    {"GUI": {"RewardAmount": 6, "side": "R"}}
  ]
}`

// photometryExport builds a console CSV whose DI/O-2 line pulses at 5 s
// and 25 s. The behavioral trials start at 30 s and 50 s, so the shift is
// +25 s and the photometry side moves forward.
func photometryExport() string {
	var b strings.Builder
	b.WriteString("Time(s),AIn-1 - Dem (AOut-1),DI/O-1,DI/O-2\n")
	for t := 0.0; t <= 30.0; t += 0.5 {
		ttl := 0
		if (t >= 5.0 && t < 6.0) || (t >= 25.0 && t < 26.0) {
			ttl = 1
		}
		fmt.Fprintf(&b, "%.3f,%.3f,0,%d\n", t, 0.1, ttl)
	}
	return b.String()
}

type testEnv struct {
	cfg       *config.Config
	cat       *catalog.Catalog
	store     *storage.LocalStore
	converter *Converter
	inputs    SessionInputs
	dir       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "out")
	cfg.Resolve()
	require.NoError(t, cfg.EnsureDirectories())

	cat, err := catalog.Open(cfg.CatalogPath())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	store, err := storage.NewLocalStore(filepath.Join(dir, "mirror"))
	require.NoError(t, err)

	behaviorPath := filepath.Join(dir, "C005_session.json")
	photometryPath := filepath.Join(dir, "C005_photometry.csv")
	require.NoError(t, os.WriteFile(behaviorPath, []byte(behaviorExport), 0644))
	require.NoError(t, os.WriteFile(photometryPath, []byte(photometryExport()), 0644))

	return &testEnv{
		cfg:       cfg,
		cat:       cat,
		store:     store,
		converter: NewConverter(cfg, cat, store, zerolog.Nop()),
		inputs: SessionInputs{
			BehaviorPath:   behaviorPath,
			PhotometryPath: photometryPath,
		},
		dir: dir,
	}
}

func TestConvertSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Equal(t, "C005-2024-01-15", result.SessionID)
	assert.InDelta(t, 25.0, result.TimeShift, 1e-6)
	assert.Equal(t, types.BranchShiftSecondaryForward, result.Branch)
	assert.FileExists(t, result.ArchivePath)

	rec, err := env.cat.Lookup(ctx, "C005-2024-01-15")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "shift-secondary-forward", rec.Branch)
	assert.Equal(t, int64(2), rec.TrialCount)
	assert.Equal(t, result.ArchivePath, rec.ArchivePath)

	// The archive was mirrored under subject/filename.
	exists, err := env.store.Exists(ctx, result.RemotePath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "C005/"+filepath.Base(result.ArchivePath), result.RemotePath)
}

func TestConvertSkipsUnchangedSources(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	// Changing a source file invalidates the fingerprint.
	require.NoError(t, os.WriteFile(env.inputs.BehaviorPath,
		[]byte(strings.Replace(behaviorExport, `"RewardAmount": 24`, `"RewardAmount": 12`, 1)), 0644))
	third, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.False(t, third.Skipped)
}

func TestConvertAppliesSessionMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	metaPath := filepath.Join(env.dir, "C005_metadata.yaml")
	require.NoError(t, os.WriteFile(metaPath, []byte(
		"session:\n  experimenter: Schierek, Jorge\nsubject:\n  sex: F\n"), 0644))
	env.inputs.MetadataPath = metaPath

	result, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	require.False(t, result.Skipped)

	db, err := sql.Open("sqlite3", result.ArchivePath)
	require.NoError(t, err)
	defer db.Close()

	var experimenter, sex, institution string
	require.NoError(t, db.QueryRow(
		`SELECT value FROM metadata WHERE key = 'experimenter'`).Scan(&experimenter))
	require.NoError(t, db.QueryRow(
		`SELECT value FROM metadata WHERE key = 'subject_sex'`).Scan(&sex))
	require.NoError(t, db.QueryRow(
		`SELECT value FROM metadata WHERE key = 'institution'`).Scan(&institution))
	assert.Equal(t, "Schierek, Jorge", experimenter)
	assert.Equal(t, "F", sex)
	// Fields the file leaves out carry the lab defaults.
	assert.NotEmpty(t, institution)

	// The metadata file is part of the source fingerprint: unchanged
	// sources skip, an edited file forces reconversion.
	skipped, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)

	require.NoError(t, os.WriteFile(metaPath, []byte(
		"session:\n  experimenter: Mah, Andrew\nsubject:\n  sex: F\n"), 0644))
	again, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.False(t, again.Skipped)
}

func TestConvertOverwriteForcesReconversion(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Batch.Overwrite = true
	ctx := context.Background()

	_, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	again, err := env.converter.Convert(ctx, env.inputs)
	require.NoError(t, err)
	assert.False(t, again.Skipped)
}

func TestConvertBehaviorOnlySessionFails(t *testing.T) {
	// Without any secondary recording there is nothing to align against.
	env := newTestEnv(t)
	env.inputs.PhotometryPath = ""

	_, err := env.converter.Convert(context.Background(), env.inputs)
	require.Error(t, err)
	assert.Equal(t, types.CodeInputMismatch, types.GetCode(err))
}

func TestConvertBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	broken := filepath.Join(env.dir, "broken_session.json")
	require.NoError(t, os.WriteFile(broken, []byte("not json"), 0644))

	summary := env.converter.ConvertBatch(ctx, []SessionInputs{
		env.inputs,
		{BehaviorPath: broken, PhotometryPath: env.inputs.PhotometryPath},
	})

	assert.Equal(t, int64(1), summary.Converted)
	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, int64(1), summary.Failures[types.CodeParseFailed])
	assert.Equal(t, int64(1), summary.Branches[types.BranchShiftSecondaryForward])
}

func TestConvertBatchRespectsCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := env.converter.ConvertBatch(ctx, []SessionInputs{env.inputs})
	assert.Zero(t, summary.Converted)
}

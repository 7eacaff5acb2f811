// Package pipeline orchestrates session conversion: parse the behavioral
// and acquisition exports, align their clocks, write the archive, and
// register the result in the conversions catalog.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/acquisition"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/align"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/archive"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/behavior"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/catalog"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/config"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/metadata"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/observability"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/storage"
	"github.com/catalystneuro/constantinople-lab-to-nwb/pkg/types"
)

// SessionInputs names the source files of one session.
type SessionInputs struct {
	// BehaviorPath is the behavioral controller session export (JSON).
	BehaviorPath string
	// PhotometryPath is the photometry console export (CSV). Optional.
	PhotometryPath string
	// MetadataPath is the session metadata YAML, merged over the lab
	// defaults. Optional; without it the defaults are archived as-is.
	MetadataPath string
}

func (in SessionInputs) paths() []string {
	paths := []string{in.BehaviorPath}
	if in.PhotometryPath != "" {
		paths = append(paths, in.PhotometryPath)
	}
	if in.MetadataPath != "" {
		paths = append(paths, in.MetadataPath)
	}
	return paths
}

// Result describes the outcome of converting one session.
type Result struct {
	SessionID   string
	Skipped     bool
	TimeShift   float64
	Branch      types.AlignmentBranch
	ArchivePath string
	RemotePath  string
}

// Converter runs the conversion pipeline for single sessions.
type Converter struct {
	cfg     *config.Config
	aligner *align.Aligner
	writer  *archive.Writer
	catalog *catalog.Catalog
	store   storage.ArchiveStore
	stats   *observability.ConversionStats
	log     zerolog.Logger
}

// NewConverter wires a converter. store may be nil when archives are not
// mirrored anywhere.
func NewConverter(cfg *config.Config, cat *catalog.Catalog, store storage.ArchiveStore, log zerolog.Logger) *Converter {
	return &Converter{
		cfg:     cfg,
		aligner: align.New(log),
		writer:  archive.NewWriter(cfg.Archive.OutputDir),
		catalog: cat,
		store:   store,
		stats:   observability.NewConversionStats(),
		log:     log,
	}
}

// Stats returns the tracker shared by every conversion of this Converter.
func (c *Converter) Stats() *observability.ConversionStats {
	return c.stats
}

// Convert runs the full pipeline for one session. Sessions whose source
// fingerprint is already cataloged are skipped unless the configuration
// asks for overwrites. Failures leave no archive and no catalog row.
func (c *Converter) Convert(ctx context.Context, in SessionInputs) (*Result, error) {
	result, err := c.convert(ctx, in)
	if err != nil {
		c.stats.RecordFailure(err)
		return nil, err
	}
	if result.Skipped {
		c.stats.RecordSkip()
	} else {
		c.stats.RecordConversion(result.Branch, result.TimeShift)
	}
	return result, nil
}

func (c *Converter) convert(ctx context.Context, in SessionInputs) (*Result, error) {
	fingerprint, err := catalog.Fingerprint(in.paths()...)
	if err != nil {
		return nil, err
	}

	raw, err := behavior.ParseSessionFile(in.BehaviorPath)
	if err != nil {
		return nil, err
	}
	log := observability.WithSession(c.log, raw.SessionID, raw.SubjectID)

	raw.Metadata = metadata.Default()
	if in.MetadataPath != "" {
		raw.Metadata, err = metadata.Load(in.MetadataPath)
		if err != nil {
			return nil, err
		}
	}

	if !c.cfg.Batch.Overwrite {
		done, err := c.catalog.AlreadyConverted(ctx, raw.SessionID, fingerprint)
		if err != nil {
			return nil, err
		}
		if done {
			log.Info().Msg("sources unchanged since last conversion, skipping")
			return &Result{SessionID: raw.SessionID, Skipped: true}, nil
		}
	}

	if in.PhotometryPath != "" {
		data, err := acquisition.ReadPhotometryFile(in.PhotometryPath)
		if err != nil {
			return nil, err
		}
		rec, err := acquisition.NewPhotometryRecording(
			"fiber_photometry", data, c.cfg.Photometry.MarkerChannel)
		if err != nil {
			return nil, err
		}
		raw.Recordings = append(raw.Recordings, rec)
	}

	aligned, err := c.aligner.Align(raw)
	if err != nil {
		return nil, err
	}

	info, err := c.writer.Write(ctx, aligned)
	if err != nil {
		return nil, err
	}

	var remotePath string
	if c.store != nil {
		remotePath = fmt.Sprintf("%s/%s", aligned.SubjectID, filepath.Base(info.ArchivePath))
		if err := c.store.Put(ctx, info.ArchivePath, remotePath); err != nil {
			return nil, types.NewStorageError(
				fmt.Sprintf("pipeline: mirror archive for session %s", aligned.SessionID), err)
		}
	}

	err = c.catalog.Register(ctx, catalog.Record{
		SessionID:   aligned.SessionID,
		SubjectID:   aligned.SubjectID,
		TimeShift:   aligned.TimeShift,
		Branch:      aligned.Branch.String(),
		Fingerprint: fingerprint,
		ArchivePath: info.ArchivePath,
		RemotePath:  remotePath,
		TrialCount:  info.TrialCount,
		CreatedAt:   info.CreatedAt,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("archive", info.ArchivePath).
		Int64("trials", info.TrialCount).
		Int64("series", info.SeriesCount).
		Msg("session converted")

	return &Result{
		SessionID:   aligned.SessionID,
		TimeShift:   aligned.TimeShift,
		Branch:      aligned.Branch,
		ArchivePath: info.ArchivePath,
		RemotePath:  remotePath,
	}, nil
}

// Package main implements the convert-session binary. It converts one
// recording session: behavioral controller export plus an optional
// photometry export, aligned onto a common clock and written to a session
// archive registered in the conversions catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/catalog"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/config"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/observability"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/pipeline"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML or JSON config file")
		behavior   = flag.String("behavior", "", "behavioral session export (JSON, required)")
		photometry = flag.String("photometry", "", "photometry console export (CSV)")
		metadata   = flag.String("metadata", "", "session metadata file (YAML), merged over lab defaults")
		dataDir    = flag.String("data-dir", "", "override output data directory")
		overwrite  = flag.Bool("overwrite", false, "reconvert even if sources are unchanged")
		logFormat  = flag.String("log-format", "console", "log output format: console or json")
	)
	flag.Parse()

	if *behavior == "" {
		fmt.Fprintln(os.Stderr, "usage: convert-session -behavior <session.json> [-photometry <export.csv>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert-session: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *overwrite {
		cfg.Batch.Overwrite = true
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "convert-session: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.InitLogging(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: *logFormat,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("create output directories")
	}

	cat, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		log.Fatal().Err(err).Msg("open conversions catalog")
	}
	defer cat.Close()

	ctx := context.Background()
	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize archive store")
	}

	converter := pipeline.NewConverter(cfg, cat, store, log)
	result, err := converter.Convert(ctx, pipeline.SessionInputs{
		BehaviorPath:   *behavior,
		PhotometryPath: *photometry,
		MetadataPath:   *metadata,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("conversion failed")
	}
	if result.Skipped {
		log.Info().Str("session_id", result.SessionID).Msg("nothing to do")
		return
	}
	log.Info().
		Str("session_id", result.SessionID).
		Str("archive", result.ArchivePath).
		Msg("done")
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.ArchiveStore, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStore(cfg.Storage.Path)
	case "s3":
		return storage.NewS3Store(ctx, cfg.Storage.S3.Bucket, storage.S3Config{
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.Endpoint != "",
		})
	default:
		return nil, nil
	}
}

// Package main implements the convert-batch binary. It discovers session
// exports under a raw data directory, converts them in parallel, and
// reports a run summary. Sessions already cataloged with unchanged
// sources are skipped.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/catalog"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/config"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/observability"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/pipeline"
	"github.com/catalystneuro/constantinople-lab-to-nwb/internal/storage"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML or JSON config file")
		inputDir    = flag.String("input-dir", "", "directory to scan for session exports (required)")
		dataDir     = flag.String("data-dir", "", "override output data directory")
		concurrency = flag.Int("concurrency", 0, "override parallel conversion count")
		overwrite   = flag.Bool("overwrite", false, "reconvert even if sources are unchanged")
		logFormat   = flag.String("log-format", "console", "log output format: console or json")
	)
	flag.Parse()

	if *inputDir == "" {
		fmt.Fprintln(os.Stderr, "usage: convert-batch -input-dir <raw data directory>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "convert-batch: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *concurrency > 0 {
		cfg.Batch.Concurrency = *concurrency
	}
	if *overwrite {
		cfg.Batch.Overwrite = true
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "convert-batch: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log := observability.InitLogging(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: *logFormat,
	})

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("create output directories")
	}

	inputs, err := discoverSessions(*inputDir, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("scan input directory")
	}
	if len(inputs) == 0 {
		log.Warn().Str("dir", *inputDir).Str("glob", cfg.Behavior.SessionGlob).
			Msg("no session exports found")
		return
	}
	log.Info().Int("sessions", len(inputs)).Msg("discovered session exports")

	cat, err := catalog.Open(cfg.CatalogPath())
	if err != nil {
		log.Fatal().Err(err).Msg("open conversions catalog")
	}
	defer cat.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize archive store")
	}

	converter := pipeline.NewConverter(cfg, cat, store, log)
	summary := converter.ConvertBatch(ctx, inputs)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

// discoverSessions walks the input directory for behavioral exports
// matching the configured glob. Companion files sit next to the session
// export under the same stem: X_session.json pairs with X_photometry.csv
// and X_metadata.yaml.
func discoverSessions(dir string, cfg *config.Config) ([]pipeline.SessionInputs, error) {
	var inputs []pipeline.SessionInputs
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		matched, err := filepath.Match(cfg.Behavior.SessionGlob, info.Name())
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		inputs = append(inputs, pipeline.SessionInputs{
			BehaviorPath:   path,
			PhotometryPath: pairCompanion(path, "_photometry.csv"),
			MetadataPath:   pairCompanion(path, "_metadata.yaml"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inputs, nil
}

func pairCompanion(behaviorPath, suffix string) string {
	stem := strings.TrimSuffix(behaviorPath, "_session.json")
	if stem == behaviorPath {
		stem = strings.TrimSuffix(behaviorPath, filepath.Ext(behaviorPath))
	}
	candidate := stem + suffix
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
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

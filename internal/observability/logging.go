package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// InitLogging initializes the global zerolog logger and returns it.
// Conversion commands run interactively, so console output is the default;
// the json format exists for runs driven by schedulers.
func InitLogging(cfg LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stderr
	if cfg.Format != "json" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	return log.Logger
}

// WithSession returns a logger carrying session context.
func WithSession(logger zerolog.Logger, sessionID, subjectID string) zerolog.Logger {
	return logger.With().
		Str("session_id", sessionID).
		Str("subject_id", subjectID).
		Logger()
}

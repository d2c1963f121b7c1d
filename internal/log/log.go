// Package log provides the daemon's structured logger: zerolog underneath,
// console output (colored) in foreground/dev mode, JSON when daemonized.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Components derive child loggers
// from it via WithComponent.
var Logger zerolog.Logger

// Level represents a log level name.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level Level
	// JSONOutput selects JSON records (daemonized mode); false selects a
	// colored console writer (foreground/--dev mode, replacing the
	// original's ColoredFormatter).
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger from cfg.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger tagged with the owning component,
// mirroring each component's own logger in the daemon (scheduler,
// freshness, predownload, query, store, discovery).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithMedia creates a child logger tagged with a media name.
func WithMedia(logger zerolog.Logger, media string) zerolog.Logger {
	return logger.With().Str("media", media).Logger()
}

// WithTask creates a child logger tagged with a scheduler task name.
func WithTask(logger zerolog.Logger, task string) zerolog.Logger {
	return logger.With().Str("task", task).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options control how the global zerolog logger is configured.
type Options struct {
	// Level is one of "debug", "info", "warn", "error". Unknown values
	// fall back to "info".
	Level string

	// Format is either "console" (human-readable) or "json".
	Format string

	// NoColor disables colored console output.
	NoColor bool

	// Output overrides the destination. Defaults to stderr.
	Output io.Writer
}

// InitDefault sets up a console logger at info level.
// It is called before flags and config are parsed so that early
// startup errors are still readable.
func InitDefault() {
	Init(Options{})
}

// Init configures the global zerolog logger from the given options.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	switch strings.ToLower(opts.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		}
	}

	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()

	// log.Ctx on a context without a logger (e.g. in the outermost
	// recover handler) falls back to the global logger instead of
	// discarding the event
	zerolog.DefaultContextLogger = &log.Logger
}

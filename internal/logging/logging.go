// Package logging configures the process-wide zerolog logger for the shelfauth binary.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects level and output format. Zero values mean info + console.
type Options struct {
	Level   string
	Format  string
	NoColor bool
	Out     io.Writer
}

// InitDefault installs a console logger at info level. It is used before
// flags and configuration have been read.
func InitDefault() {
	_ = Init(Options{})
}

// Init replaces the global logger and global level.
func Init(opts Options) error {
	logger, level, err := New(opts)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = logger
	return nil
}

// New builds a logger without touching globals.
func New(opts Options) (zerolog.Logger, zerolog.Level, error) {
	level := zerolog.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), level, fmt.Errorf("log level %q: %w", s, err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.RFC3339,
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), level, fmt.Errorf("log format %q: want %s or %s", opts.Format, FormatConsole, FormatJSON)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), level, nil
}

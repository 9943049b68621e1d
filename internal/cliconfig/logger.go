package cliconfig

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger builds the process logger: console output on stderr, plus the
// configured log file when it is writable. A file that cannot be opened is
// not fatal; the daemon typically runs as root but the CLI does not.
func Logger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var w io.Writer = console
	if cfg.LogFile != "" {
		if f, ferr := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); ferr == nil {
			w = zerolog.MultiLevelWriter(console, f)
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

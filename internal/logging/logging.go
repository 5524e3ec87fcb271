// Package logging builds the structured zerolog.Logger shared across the
// monitor, reporter, slate runner, and broadcast probes. All four binaries
// call New with their own component name and log file path so every line
// can be filtered by component as well as by the error-kind taxonomy in
// internal/errors.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger that writes to stderr and, if logFilePath is
// non-empty, also appends to that file. A missing or unwritable log file is
// not fatal: the component still gets stderr logging.
func New(component, logFilePath string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr, NoColor: !isTTY(os.Stderr)}}
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			writers = append(writers, f)
		}
	}

	return zerolog.New(io.MultiWriter(writers...)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

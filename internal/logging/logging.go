// Package logging provides application-wide logging configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats accepted by Init.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var debugEnabled bool

// Init initializes the global logger. format is FormatConsole or FormatJSON;
// anything else falls back to the console writer.
func Init(debug bool, format string) {
	debugEnabled = debug
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(writer(os.Stderr, format)).With().Timestamp().Logger()
}

func writer(out io.Writer, format string) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		return out
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}

// DebugEnabled reports whether debug logging is enabled.
func DebugEnabled() bool {
	return debugEnabled
}

/*
Package logging builds the process logger.
*/
package logging

import (
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a logger writing to w at the given level. format "json" emits
// raw JSON lines; anything else uses the human-readable console writer.
func New(level, format string, w io.Writer) zerolog.Logger {
	zerolog.ErrorFieldName = "err"

	var out io.Writer = w
	if !strings.EqualFold(strings.TrimSpace(format), "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(out).
		Level(ParseLevel(level, zerolog.InfoLevel)).
		With().
		Timestamp().
		Logger()
}

// WithRun tags every event with a fresh run id.
func WithRun(log zerolog.Logger) (zerolog.Logger, string) {
	id := uuid.NewString()
	return log.With().Str("run_id", id).Logger(), id
}

func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

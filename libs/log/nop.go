package log

import (
	"github.com/rs/zerolog"
)

// NewNopLogger returns a logger that discards all log output.
func NewNopLogger() Logger {
	return defaultLogger{
		Logger: zerolog.Nop(),
	}
}

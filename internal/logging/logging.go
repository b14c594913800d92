package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger: console output, RFC3339 timestamps,
// tagged with the app name.
func New(app string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", app).Logger()
}

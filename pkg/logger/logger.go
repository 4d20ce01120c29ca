package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger initializes the global zerolog logger on stdout. format "console"
// selects human-readable output, anything else JSON. The level is parsed from
// logLevel (e.g., "info", "debug", "error"); unknown levels fall back to info.
func InitLogger(logLevel, format string) {
	initLogger(os.Stdout, logLevel, format)
}

func initLogger(out io.Writer, logLevel, format string) {
	var w io.Writer = out
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05"}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel // Default to info if invalid
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msgf("Logger initialized with level: %s", zerolog.GlobalLevel().String())
}

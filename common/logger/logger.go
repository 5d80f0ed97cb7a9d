package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/LexiconIndonesia/catalog-sync-service/common/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global zerolog logger from the log section of the config
func Setup(cfg config.Config) {
	SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination
func SetupWithWriter(cfg config.Config, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(cfg.Log.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Str("service", "catalog-sync-service").Logger()
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, falling back to info")
	}
}

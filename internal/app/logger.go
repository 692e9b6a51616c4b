package app

import (
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
)

// NewLogger builds the JSON logger selected by cfg.Log.
func NewLogger(cfg *config.Config) logx.Logger {
	level := strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Backend == "zerolog" {
		lvl, err := zerolog.ParseLevel(level)
		if err != nil || level == "" {
			lvl = zerolog.InfoLevel
		}
		return logx.NewZerologAdapter(zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger())
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	return logx.NewSlogAdapter(base)
}

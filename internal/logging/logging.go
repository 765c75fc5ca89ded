package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/reframe-journal/internal/config"
)

// Setup configures the global zerolog logger. The returned closer releases the
// rotating log file when one is configured.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var console io.Writer = os.Stderr
	if cfg.Format == "console" || cfg.Format == "text" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	if cfg.File == "" {
		log.Logger = zerolog.New(console).With().Timestamp().Logger()
		return nopCloser{}, nil
	}

	rotator, err := newRotator(cfg)
	if err != nil {
		return nil, err
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, rotator)).With().Timestamp().Logger()
	return rotator, nil
}

func newRotator(cfg config.LoggingConfig) (*rotatelogs.RotateLogs, error) {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	rotation := cfg.RotationTime
	if rotation <= 0 {
		rotation = 24 * time.Hour
	}

	rotator, err := rotatelogs.New(
		cfg.File+".%Y%m%d",
		rotatelogs.WithLinkName(cfg.File),
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(rotation),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open rotating log %s: %w", cfg.File, err)
	}
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

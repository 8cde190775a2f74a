// Package logging builds the logrus logger used by the CLI and handed to
// array clients.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
)

// Config controls level, format and destination.
type Config struct {
	Level  string
	Format string
	// File enables a rotating log file instead of stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New returns a logger configured from cfg. Empty fields take defaults:
// info level, text format, stderr.
func New(cfg Config) (*logrus.Logger, error) {
	return newWithOutput(cfg, os.Stderr)
}

func newWithOutput(cfg Config, stderr io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q (expected text or json)", cfg.Format)
	}

	log.SetOutput(stderr)
	if cfg.File != "" {
		log.SetOutput(rotatingFile(cfg))
	}
	return log, nil
}

func rotatingFile(cfg Config) *lumberjack.Logger {
	l := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if l.MaxSize == 0 {
		l.MaxSize = defaultMaxSizeMB
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = defaultMaxBackups
	}
	return l
}

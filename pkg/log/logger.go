package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Config controls the global logger.
type Config struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is "json" or "console".
	Format string `mapstructure:"format"`
	// File, when set, receives a copy of every record through a rotating writer.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns console logging at info level.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = newZerologProvider(zerolog.New(os.Stderr).With().Timestamp().Logger(), LevelInfo)
)

// SetupLogger configures the global logger and routes errors.Warn to it.
func SetupLogger(cfg Config) error {
	level, err := ToLogLevel(cfg.Level)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	} else if cfg.Format != "" && !strings.EqualFold(cfg.Format, "json") {
		return errors.NewValidationError("log.format", "must be json or console", cfg.Format)
	}
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(out, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	base := zerolog.New(out).With().Timestamp().Logger()
	SetProvider(newZerologProvider(base, level))
	return nil
}

// SetProvider replaces the global provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	provider = p
	providerMu.Unlock()

	errors.SetWarningHandler(func(w error) {
		l := p.GetLoggerWithName("warnings")
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			l.Warn(w.Error(), "warning", m)
			return
		}
		l.Warn(w.Error())
	})
}

// GetLogger returns the default logger from the global provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger from the global provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be debug, info, warn or error", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// zerologProvider hands out loggers sharing one base logger and level.
type zerologProvider struct {
	mu    sync.RWMutex
	base  zerolog.Logger
	level Level
}

func newZerologProvider(base zerolog.Logger, level Level) *zerologProvider {
	return &zerologProvider{base: base, level: level}
}

func (p *zerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &zerologLogger{zl: p.base.Level(toZerologLevel(p.level))}
}

func (p *zerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	zl := p.base.Level(toZerologLevel(p.level)).With().Str(ComponentKey, name).Logger()
	return &zerologLogger{zl: zl}
}

func (p *zerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// zerologLogger adapts zerolog.Logger to Logger.
type zerologLogger struct {
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	appendFields(l.zl.Debug(), fields).Msg(msg)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	appendFields(l.zl.Info(), fields).Msg(msg)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	appendFields(l.zl.Warn(), fields).Msg(msg)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	appendFields(l.zl.Error(), fields).Msg(msg)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: appendFields(l.zl.With(), fields).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

// Package zaplog adapts zap to the latency-benchmark-common logging.Logger
// interface. It backs the "json" log format; the console format uses the
// common package's DefaultLogger directly.
package zaplog

import (
	"context"
	"fmt"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a logging.Logger that writes through zap
type Logger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

var _ logging.Logger = (*Logger)(nil)

// ParseLevel maps a level name onto a logging level. Empty means info.
func ParseLevel(level string) (logging.Level, error) {
	if level == "" {
		return logging.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return logging.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return fromZap(lvl), nil
}

// New builds a JSON logger writing to stderr at the given level
func New(level logging.Level) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZap(level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	base, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{base: base, level: cfg.Level}, nil
}

// NewWithCore wraps an existing zap core. Tests use it with zaptest/observer.
func NewWithCore(core zapcore.Core, level logging.Level) *Logger {
	atom := zap.NewAtomicLevelAt(toZap(level))
	filtered, err := zapcore.NewIncreaseLevelCore(core, atom)
	if err != nil {
		filtered = core
	}
	return &Logger{base: zap.New(filtered), level: atom}
}

func (l *Logger) Debug(msg string, fields ...logging.Fields) {
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...logging.Fields) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...logging.Fields) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *Logger) Error(err error, msg string, fields ...logging.Fields) {
	l.base.Error(msg, withError(err, fields)...)
}

// Fatal logs and exits the process, like the common DefaultLogger
func (l *Logger) Fatal(err error, msg string, fields ...logging.Fields) {
	l.base.Fatal(msg, withError(err, fields)...)
}

func (l *Logger) WithFields(fields logging.Fields) logging.Logger {
	return &Logger{base: l.base.With(zapFields([]logging.Fields{fields})...), level: l.level}
}

// WithContext attaches the fields stored under "logger_fields", the key the
// common loggers read
func (l *Logger) WithContext(ctx context.Context) logging.Logger {
	if fields, ok := ctx.Value("logger_fields").(logging.Fields); ok {
		return l.WithFields(fields)
	}
	return l
}

// SetLevel changes the level of this logger and every logger derived from it
func (l *Logger) SetLevel(level logging.Level) {
	l.level.SetLevel(toZap(level))
}

func withError(err error, fields []logging.Fields) []zap.Field {
	zf := zapFields(fields)
	if err != nil {
		zf = append(zf, zap.Error(err))
	}
	return zf
}

func zapFields(sets []logging.Fields) []zap.Field {
	var out []zap.Field
	for _, set := range sets {
		for k, v := range set {
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

func toZap(level logging.Level) zapcore.Level {
	switch level {
	case logging.DebugLevel:
		return zapcore.DebugLevel
	case logging.WarnLevel:
		return zapcore.WarnLevel
	case logging.ErrorLevel:
		return zapcore.ErrorLevel
	case logging.FatalLevel:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func fromZap(level zapcore.Level) logging.Level {
	switch {
	case level <= zapcore.DebugLevel:
		return logging.DebugLevel
	case level == zapcore.InfoLevel:
		return logging.InfoLevel
	case level == zapcore.WarnLevel:
		return logging.WarnLevel
	case level == zapcore.ErrorLevel:
		return logging.ErrorLevel
	default:
		return logging.FatalLevel
	}
}

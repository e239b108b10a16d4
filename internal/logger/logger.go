package logger

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

const ServiceName = "swiftfit"

var log = zap.NewNop().Sugar()

// Config holds logger configuration (LOG_LEVEL, LOG_FORMAT).
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// Init installs a production JSON logger at info level.
func Init() {
	if err := Configure(Config{Level: "info", Format: "json"}); err != nil {
		log = zap.NewExample().Sugar()
	}
}

// Configure replaces the package logger according to cfg.
func Configure(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var zapConfig zap.Config
	if strings.ToLower(cfg.Format) == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	l, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	log = l.With(zap.String(FieldService, ServiceName)).Sugar()
	return nil
}

// New wraps an existing zap core, mostly for tests.
func New(core zapcore.Core) *zap.SugaredLogger {
	return zap.New(core, zap.AddCallerSkip(1)).Sugar()
}

// SetLogger replaces the package logger.
func SetLogger(l *zap.SugaredLogger) {
	log = l
}

func L() *zap.SugaredLogger {
	return log
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}
}

func Info(msg string, keysAndValues ...interface{}) {
	log.Infow(msg, keysAndValues...)
}

func Infof(format string, v ...interface{}) {
	log.Infof(format, v...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	log.Warnw(msg, keysAndValues...)
}

func Warnf(format string, v ...interface{}) {
	log.Warnf(format, v...)
}

func Error(msg string, keysAndValues ...interface{}) {
	log.Errorw(msg, keysAndValues...)
}

func Errorf(format string, v ...interface{}) {
	log.Errorf(format, v...)
}

func Debug(msg string, keysAndValues ...interface{}) {
	log.Debugw(msg, keysAndValues...)
}

func Debugf(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	log.Fatalf(format, v...)
}

func WithError(err error) *zap.SugaredLogger {
	return log.With(FieldError, err)
}

func WithFields(fields map[string]interface{}) *zap.SugaredLogger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return log.With(args...)
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = log.Sync()
}

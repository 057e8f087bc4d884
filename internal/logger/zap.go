package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the zap backend settings.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
}

// zapLogger adapts a zap SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

// New builds a zap-backed Logger writing to w. An unknown level falls back
// to info; an unknown format falls back to console.
func New(cfg Config, w io.Writer) Logger {
	return &zapLogger{s: newZap(cfg, w).Sugar()}
}

// NewEnvLogger creates a stderr logger that respects the GEA_DEBUG environment variable.
// The name is attached to every entry (e.g., "lock" or "store").
func NewEnvLogger(name string) Logger {
	level := "info"
	if os.Getenv("GEA_DEBUG") != "" {
		level = "debug"
	}
	z := newZap(Config{Level: level, Format: "console"}, os.Stderr)
	if name != "" {
		z = z.Named(name)
	}
	return &zapLogger{s: z.Sugar()}
}

// Named returns a child of l carrying name, when l is zap-backed.
// Other loggers are returned unchanged.
func Named(l Logger, name string) Logger {
	if zl, ok := l.(*zapLogger); ok {
		return &zapLogger{s: zl.s.Named(name)}
	}
	return l
}

func newZap(cfg Config, w io.Writer) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core)
}

func (l *zapLogger) Debug(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *zapLogger) Info(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLogger) Warn(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *zapLogger) Error(format string, args ...interface{}) { l.s.Errorf(format, args...) }

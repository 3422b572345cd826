package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeKey   = "time"
	levelKey  = "level"
	sourceKey = "source"
	msgKey    = "msg"
)

var (
	sugarLogger *zap.SugaredLogger
	initOnce    sync.Once
)

// Options controls where logs go. Zero values fall back to LOG_DIR / "logs" and info level.
type Options struct {
	Dir   string
	Level string
}

// Init builds the process-wide logger. Calling it more than once has no effect.
func Init(opts Options) {
	initOnce.Do(func() {
		sugarLogger = build(opts)
	})
}

func build(opts Options) *zap.SugaredLogger {
	logDir := opts.Dir
	if logDir == "" {
		logDir = os.Getenv("LOG_DIR")
	}
	if logDir == "" {
		logDir = "logs"
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			level = zapcore.InfoLevel
		}
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        timeKey,
		LevelKey:       levelKey,
		NameKey:        sourceKey,
		MessageKey:     msgKey,
		CallerKey:      "caller",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), level),
	}

	logPath := filepath.Join(logDir, "app.log")
	if err := os.MkdirAll(logDir, 0755); err == nil {
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50,
			MaxBackups: 10,
			MaxAge:     28,
			Compress:   true,
			LocalTime:  true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), w, level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return log.Sugar()
}

// NewNamedLogger creates a new named SugaredLogger for a given component.
func NewNamedLogger(name string) *zap.SugaredLogger {
	Init(Options{})
	return sugarLogger.Named(name)
}

// Sync flushes buffered entries; call it on shutdown.
func Sync() {
	if sugarLogger != nil {
		_ = sugarLogger.Sync()
	}
}

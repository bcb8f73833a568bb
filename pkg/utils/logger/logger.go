package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a named zap SugaredLogger
type Logger struct {
	*zap.SugaredLogger
}

var (
	globalLogger *Logger
	mu           sync.RWMutex
	level        = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init configures the process-wide logger. Calling it again replaces the
// encoder and level, so the server can re-init once configuration is loaded.
func Init(lvl string, env string) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if env == "production" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level.SetLevel(ParseLevel(lvl))

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	globalLogger = &Logger{base.Sugar()}
	mu.Unlock()
}

// ParseLevel maps a config string to a zap level, defaulting to info
func ParseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLevel changes the level of every logger handed out so far
func SetLevel(lvl string) {
	level.SetLevel(ParseLevel(lvl))
}

// GetLogger returns a logger named after the calling component
func GetLogger(name string) *Logger {
	mu.RLock()
	g := globalLogger
	mu.RUnlock()

	if g == nil {
		Init("info", "development")
		mu.RLock()
		g = globalLogger
		mu.RUnlock()
	}

	return &Logger{g.Named(name)}
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.SugaredLogger.Sync()
}

package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	fileName    = "scicheck.log"
	maxFileMB   = 5
	maxBackups  = 3
	maxValueLen = 200
	truncSuffix = "…"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
	sink   *lumberjack.Logger
)

// Init opens the rotating log file in dir. Call once at startup.
// Safe to skip; all log calls become no-ops if not initialized.
func Init(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, fileName),
		MaxSize:    maxFileMB,
		MaxBackups: maxBackups,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.MessageKey = "event"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(rotator),
		zap.DebugLevel,
	)

	mu.Lock()
	defer mu.Unlock()
	logger = zap.New(core)
	sink = rotator
	return nil
}

// InitWith installs an already-built logger. Tests use it with zaptest/observer.
func InitWith(l *zap.Logger) {
	mu.Lock()
	logger = l
	sink = nil
	mu.Unlock()
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		_ = logger.Sync()
		logger = nil
	}
	if sink != nil {
		sink.Close()
		sink = nil
	}
}

// Info logs a structured event.
//
//	applog.Info("ws.connected", "url", u)
//	applog.Info("history.record", "question", q, "answers", 3)
func Info(event string, kv ...any) {
	write(zapcore.InfoLevel, event, nil, kv)
}

// Debug logs a diagnostics-only event.
func Debug(event string, kv ...any) {
	write(zapcore.DebugLevel, event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("ws.send", err, "type", "discuss")
func Error(event string, err error, kv ...any) {
	write(zapcore.ErrorLevel, event, err, kv)
}

func write(level zapcore.Level, event string, err error, kv []any) {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l == nil {
		return
	}

	fields := make([]zap.Field, 0, len(kv)/2+1)
	if err != nil {
		fields = append(fields, zap.String("err", truncate(err.Error())))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		switch v := kv[i+1].(type) {
		case int:
			fields = append(fields, zap.Int(key, v))
		case bool:
			fields = append(fields, zap.Bool(key, v))
		default:
			fields = append(fields, zap.String(key, truncate(fmt.Sprint(v))))
		}
	}

	if ce := l.Check(level, event); ce != nil {
		ce.Write(fields...)
	}
}

func truncate(s string) string {
	if len(s) > maxValueLen {
		return s[:maxValueLen] + truncSuffix
	}
	return s
}

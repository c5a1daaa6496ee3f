// Package logger wraps a process-wide zap logger behind a small package-level API
// so handlers, services and the hub can log without threading a logger through
// every constructor.
package logger

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	base   *zap.Logger
	sugar  *zap.SugaredLogger
	prefix string
)

func init() {
	Init("development")
}

// Init (re)builds the global logger. Production uses JSON output, anything else
// a console encoder. LOG_LEVEL overrides the default level.
func Init(env string) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		l = zap.NewNop()
	}

	mu.Lock()
	base = l
	sugar = l.Sugar()
	if prefix != "" {
		sugar = sugar.Named(prefix)
	}
	mu.Unlock()
}

// SetPrefix names all subsequent log lines (e.g. "api", "seeder").
func SetPrefix(p string) {
	mu.Lock()
	defer mu.Unlock()
	prefix = p
	sugar = base.Sugar().Named(p)
}

// L returns the underlying structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func s() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(format string, v ...any) { s().Debugf(format, v...) }

func Info(v ...any) { s().Info(v...) }

func Infof(format string, v ...any) { s().Infof(format, v...) }

func Warnf(format string, v ...any) { s().Warnf(format, v...) }

func Error(v ...any) { s().Error(v...) }

func Errorf(format string, v ...any) { s().Errorf(format, v...) }

// Fatalf logs and exits the process.
func Fatalf(format string, v ...any) { s().Fatalf(format, v...) }

// LogDuration logs fn and its elapsed time. Calls faster than 100ms are only
// logged at debug level.
func LogDuration(fn string, start time.Time) {
	elapsed := time.Since(start)
	if elapsed >= 100*time.Millisecond {
		s().Infow("slow call", "fn", fn, "duration_ms", elapsed.Milliseconds())
		return
	}
	s().Debugw("call", "fn", fn, "duration_ms", elapsed.Milliseconds())
}

// DeferLogDuration is meant for defer: defer logger.DeferLogDuration("MarkRead", time.Now())().
func DeferLogDuration(fn string, start time.Time) func() {
	return func() { LogDuration(fn, start) }
}

// Sync flushes buffered entries; call before exit.
func Sync() {
	_ = L().Sync()
}

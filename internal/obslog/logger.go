// Package obslog wraps a process-wide zap logger behind a small
// helper surface so call sites stay as terse as the corpus's
// log.Printf one-liners while emitting structured fields.
package obslog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.SugaredLogger

func init() {
	base = mustBuild("info").Sugar()
}

// Init (re)builds the process-wide logger at the given level
// ("debug", "info", "warn", "error"). Call once at startup before any
// component logs.
func Init(level string) {
	base = mustBuild(level).Sugar()
}

func mustBuild(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a bare stderr core rather than panic on logger
		// construction; logging must never be why the process dies.
		core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(os.Stderr), lvl)
		return zap.New(core)
	}
	return logger
}

// With returns a child logger tagged with the given key/value pairs,
// e.g. With("symbol", "BTCUSDT", "timeframe", "1h").
func With(kv ...interface{}) *zap.SugaredLogger {
	return base.With(kv...)
}

func Infof(format string, args ...interface{})  { base.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { base.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }

// Sync flushes buffered log entries; call on shutdown.
func Sync() { _ = base.Sync() }

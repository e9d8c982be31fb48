package logger

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. It is a no-op until Init is called so that
// packages can log freely from tests.
var Log = zap.NewNop().Sugar()

// Init builds the production logger at the given level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func Init(level string) {
	cfg := zap.NewProductionConfig()

	switch level {
	case "debug":
		cfg.Level.SetLevel(zap.DebugLevel)
	case "warn":
		cfg.Level.SetLevel(zap.WarnLevel)
	case "error":
		cfg.Level.SetLevel(zap.ErrorLevel)
	default:
		cfg.Level.SetLevel(zap.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to initialize zap logger: " + err.Error())
	}
	Log = logger.Sugar()
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

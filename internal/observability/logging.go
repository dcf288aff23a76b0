// Package observability provides shared logging for the CLI and server.
//
// CLILogger writes to stderr so command output on stdout stays
// machine-parseable (JSONL consumers must never see log lines).
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It defaults to a no-op logger
// so packages can log before InitCLILogger runs (early flag parsing,
// tests).
var CLILogger = zap.NewNop()

// InitCLILogger configures the global logger.
//
// level is a zap level name ("debug", "info", "warn", "error").
// structured selects JSON encoding; otherwise a human console encoder
// is used.
func InitCLILogger(level string, structured bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if structured {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	CLILogger = zap.New(core)
	return nil
}

// Sync flushes buffered log entries. Safe to call on the no-op logger.
func Sync() {
	_ = CLILogger.Sync()
}

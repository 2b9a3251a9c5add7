// Package logging builds the zap loggers used across clara.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnvVar enables debug logging when set to a non-empty value other than "0".
const DebugEnvVar = "CLARA_DEBUG"

// New returns a zap logger writing to stderr. When debug is true it uses the
// development config (debug level, caller info); otherwise it logs at info
// level in console encoding without stack traces.
func New(debug bool) (*zap.Logger, error) {
	if debug || DebugFromEnv() {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	return cfg.Build()
}

// DebugFromEnv reports whether CLARA_DEBUG asks for debug output.
func DebugFromEnv() bool {
	v := os.Getenv(DebugEnvVar)
	return v != "" && v != "0"
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

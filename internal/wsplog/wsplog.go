// Package wsplog builds the zap logger every other package in this
// module receives as a dependency. A WSP gateway carries thousands of
// concurrent sessions rather than a handful of long-lived peers, so
// the teacher's console-only logger is extended with the two knobs a
// gateway deployment actually needs: a JSON encoding for log
// aggregation (the teacher leaves this as a comment — "Use json in
// production if desired" — and never wires it up), and sampling, so a
// flood of identical lines (a malformed-PDU storm, a capability clamp
// repeated across thousands of sessions) can't drown out everything
// else on the way to stdout.
package wsplog

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a configured zap.SugaredLogger for level and encoding.
// level: "debug", "info", "warn", "error" (case-insensitive); anything
// else falls back to "info". encoding: "console" or "json"
// (case-insensitive); anything else falls back to "console".
func New(level, encoding string) *zap.SugaredLogger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.DebugLevel
	case "warn":
		zapLevel = zap.WarnLevel
	case "error":
		zapLevel = zap.ErrorLevel
	default:
		zapLevel = zap.InfoLevel
	}

	enc := strings.ToLower(encoding)
	if enc != "json" {
		enc = "console"
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    enc,
		// Cap repeated identical messages per second instead of
		// letting a busy gateway's per-session logging (malformed
		// PDUs, capability clamps, teardown lines) scale linearly
		// with session count.
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder(enc),
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	logger, err := config.Build()
	if err != nil {
		panic("cannot initialize logger: " + err.Error())
	}

	return logger.Sugar()
}

// levelEncoder picks a color-capable level encoder for a human reading
// a console, and a plain one for JSON — ANSI color codes embedded in
// a JSON string field defeat the point of structured log aggregation.
func levelEncoder(encoding string) zapcore.LevelEncoder {
	if encoding == "json" {
		return zapcore.CapitalLevelEncoder
	}
	return zapcore.CapitalColorLevelEncoder
}

// Package logging builds the process zap logger and adapts parser events to it.
package logging

import (
	"fmt"

	"github.com/aadjones/kent-repertory-etl/internal/parser"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger writing to stderr. format is "json" or "console".
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	if format == "console" {
		cfg.Encoding = "console"
	}
	cfg.EncoderConfig = newEncoderConfig()
	cfg.Sampling = nil
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newEncoderConfig() zapcore.EncoderConfig {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderCfg
}

// ParserSink logs parser events. Boundaries and dropped headers are debug
// noise; fallbacks and merges are worth seeing at info.
func ParserSink(logger *zap.Logger) parser.EventSink {
	if logger == nil {
		return nil
	}
	return func(e parser.Event) {
		fields := []zap.Field{zap.String("event", string(e.Kind))}
		if e.Page != "" {
			fields = append(fields, zap.String("page", e.Page))
		}
		if e.Section != "" {
			fields = append(fields, zap.String("section", e.Section))
		}
		if e.Text != "" {
			fields = append(fields, zap.String("text", e.Text))
		}
		if e.Count > 0 {
			fields = append(fields, zap.Int("count", e.Count))
		}

		switch e.Kind {
		case parser.EventPlaceholderTitle, parser.EventSectionUnresolved, parser.EventMerged:
			logger.Info("parser event", fields...)
		default:
			logger.Debug("parser event", fields...)
		}
	}
}

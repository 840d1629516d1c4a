package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/igniter-labs/igniterx/pkg/utils"
)

// New builds the process logger from LOG_LEVEL and LOG_ENCODING ("json" or "console").
// Every entry carries the service name so provider and middleman logs can share a sink.
func New(service string) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(utils.Env("LOG_LEVEL", "info"))
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = utils.Env("LOG_ENCODING", "json")
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Encoding == "console" {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if level == zapcore.DebugLevel {
		cfg.Development = true
		cfg.Sampling = nil
	}
	cfg.InitialFields = map[string]interface{}{"service": service}

	return cfg.Build()
}

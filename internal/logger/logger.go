package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Production output is JSON with ISO8601 times;
// console output is for running locally. Every entry carries the service name.
func New(service string, debugMode, console bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}

	cfg := jsonConfig()
	if console {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build(zap.Fields(zap.String("service", service)))
}

func jsonConfig() zap.Config {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	// latency fields are logged as durations, read them as ms
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = enc
	// a streamed reply logs each fragment at debug
	cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	return cfg
}

// Sync flushes buffered entries; nil-safe
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

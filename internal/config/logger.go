package config

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the logging section:
//
//	logging.level     debug, info, warn or error (default info)
//	logging.format    json or console (default json)
//	logging.outputs   sink paths or URLs (default stderr)
//	logging.sampling  thin repeated messages such as per-frame parse
//	                  failures during a scan (default true)
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	level := v.GetString("logging.level")
	format := v.GetString("logging.format")

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json", "":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q: must be \"json\" or \"console\"", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	if outputs := v.GetStringSlice("logging.outputs"); len(outputs) > 0 {
		cfg.OutputPaths = outputs
	}
	if v.IsSet("logging.sampling") && !v.GetBool("logging.sampling") {
		cfg.Sampling = nil
	} else if cfg.Sampling == nil {
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}
	cfg.InitialFields = map[string]any{"service": "wlanscan"}

	return cfg.Build()
}

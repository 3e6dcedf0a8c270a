package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds a JSON production logger or a console development logger
// at the configured level.
func NewLogger(cfg LoggingConfig) (*zap.Logger, error) {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	atom, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "json":
		zc = zap.NewProductionConfig()
	case "", "console", "text":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid logging.format %q", cfg.Format)
	}
	zc.Level = atom
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

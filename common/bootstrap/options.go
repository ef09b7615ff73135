package bootstrap

import (
	"github.com/altos-data/chmig/common/config"
	"github.com/altos-data/chmig/common/logger"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	customLogger *logger.Logger
	customConfig *config.Config
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading config.yaml
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

func defaultOptions() *options {
	return &options{}
}

package bootstrap

import (
	"context"
	"fmt"

	"github.com/altos-data/chmig/common/config"
	"github.com/altos-data/chmig/common/db"
	"github.com/altos-data/chmig/common/idgen"
	"github.com/altos-data/chmig/common/logger"
	"github.com/altos-data/chmig/common/repository"
)

// Components holds everything a command needs: configuration, logger, the
// ClickHouse connection, and the history repository over it.
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *db.ClickHouse
	History   *repository.HistoryRepository
	Variables map[string]any

	cleanupFuncs []func() error
}

// Setup initializes all components for one invocation. projectRoot is the
// directory containing the master changelog; environment selects the
// variables overlay.
func Setup(ctx context.Context, projectRoot, environment string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{}

	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(projectRoot, environment)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Variables, err = config.Variables(projectRoot, environment)
	if err != nil {
		return nil, fmt.Errorf("failed to load variables: %w", err)
	}

	components.DB, err = db.New(ctx, components.Config, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	components.addCleanup(components.DB.Close)

	components.History = repository.NewHistoryRepository(
		components.DB,
		components.Config.Database.StateTable,
		idgen.New(),
	)

	components.Logger.Debug("initialization complete",
		"environment", environment,
		"state_table", components.Config.Database.StateTable,
	)

	return components, nil
}

// Shutdown releases all acquired resources in reverse order.
func (c *Components) Shutdown(ctx context.Context) {
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil && c.Logger != nil {
			c.Logger.Warn("cleanup failed", "error", err)
		}
	}
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

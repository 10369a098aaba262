package main

import (
	"path/filepath"
	"strings"
	"sync"

	"keepsake/internal/config"
	"keepsake/internal/logging"
	"keepsake/internal/orchestrator"
	"keepsake/internal/runner"
	"keepsake/internal/versions"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withOrchestrator wires the version store and orchestrator for one
// command invocation and tears them down afterwards.
func (c *commandContext) withOrchestrator(fn func(*config.Config, *orchestrator.Orchestrator) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "keepsake.log")},
	})
	if err != nil {
		return err
	}

	store, err := versions.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := orchestrator.New(cfg, store, runner.New(), logger)
	if err != nil {
		return err
	}
	return fn(cfg, orch)
}

package main

import (
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"talkcoach/internal/config"
	"talkcoach/internal/driver"
	"talkcoach/internal/ledger"
	"talkcoach/internal/logging"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/scheduler"
	"talkcoach/internal/services/llm"
	"talkcoach/internal/services/transcribe"
	"talkcoach/internal/stages"
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
		// API keys may live in a local .env file instead of the config.
		_ = godotenv.Load()

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

// withStore resolves configuration, probes the daemon API, and opens the
// ledger store. The api argument is nil when no daemon is reachable;
// commands that can use either path prefer the API so the daemon stays
// the single writer while it is running.
func (c *commandContext) withStore(fn func(api *apiClient, store *ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	api := dialAPI(cfg)

	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(api, store)
}

// newRegistry builds the stage registry from the resolved configuration.
// Stage adapters are wired but never invoked from the CLI process; the
// registry is consulted for graph metadata only.
func (c *commandContext) newRegistry() (*pipeline.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	adapters := stages.Adapters{
		Chat:        llm.NewClient(cfg.LLM),
		Transcriber: transcribe.NewClient(cfg.Transcription),
	}
	return pipeline.NewRegistry(stages.Definitions(cfg, adapters)...)
}

// newDriver wires the scheduler and stage registry around an open store
// so commands can register artifacts and request regeneration without a
// running daemon.
func (c *commandContext) newDriver(store *ledger.Store) (*driver.Driver, *pipeline.Registry, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}

	registry, err := c.newRegistry()
	if err != nil {
		return nil, nil, err
	}

	queue := scheduler.NewQueue(store)
	drv := driver.New(cfg, store, registry, queue, logging.NewNop())
	return drv, registry, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

package testsupport

import (
	"path/filepath"
	"testing"

	"talkcoach/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.PollInterval = 1
	cfg.Workflow.StageDelay = 0
	cfg.Transcription.APIKey = "test"
	cfg.LLM.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithWorkers overrides the scheduler worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.Workers = n
	}
}

// WithStageDelay overrides the fixed scheduling delay on the test config.
func WithStageDelay(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.StageDelay = seconds
	}
}

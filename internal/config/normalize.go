package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscription()
	c.normalizeLLM()
	c.normalizeSummary()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.APIKey = resolveSecret(c.Transcription.APIKey, "TALKCOACH_TRANSCRIBE_API_KEY", "GROQ_API_KEY")
	c.Transcription.BaseURL = strings.TrimSpace(c.Transcription.BaseURL)
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscribeBaseURL
	}
	if strings.TrimSpace(c.Transcription.Model) == "" {
		c.Transcription.Model = defaultTranscribeModel
	}
	if c.Transcription.TimeoutSeconds <= 0 {
		c.Transcription.TimeoutSeconds = defaultTranscribeTimeout
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = resolveSecret(c.LLM.APIKey, "TALKCOACH_LLM_API_KEY", "GROQ_API_KEY")
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizeSummary() {
	if c.Summary.ShortFocus <= 0 {
		c.Summary.ShortFocus = defaultSummaryShortFocus
	}
	if c.Summary.BalancedFocus <= 0 {
		c.Summary.BalancedFocus = defaultSummaryBalanced
	}
	if c.Summary.DetailedFocus <= 0 {
		c.Summary.DetailedFocus = defaultSummaryDetailed
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.StageDelay < 0 {
		c.Workflow.StageDelay = defaultStageDelay
	}
	if c.Workflow.ClaimTimeout <= 0 {
		c.Workflow.ClaimTimeout = defaultClaimTimeout
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.ShutdownGraceSeconds <= 0 {
		c.Workflow.ShutdownGraceSeconds = defaultShutdownGrace
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// resolveSecret returns the configured value unless it is empty or an
// ${ENV_VAR} reference, in which case the environment is consulted.
func resolveSecret(value string, envNames ...string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		name := strings.TrimSuffix(strings.TrimPrefix(trimmed, "${"), "}")
		return strings.TrimSpace(os.Getenv(name))
	}
	if trimmed != "" {
		return trimmed
	}
	for _, name := range envNames {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

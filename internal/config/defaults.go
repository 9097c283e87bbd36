package config

const (
	defaultDataDir             = "~/.local/share/talkcoach"
	defaultLogDir              = "~/.local/share/talkcoach/logs"
	defaultAPIBind             = "127.0.0.1:7319"
	defaultTranscribeBaseURL   = "https://api.groq.com/openai/v1/audio/transcriptions"
	defaultTranscribeModel     = "whisper-large-v3"
	defaultTranscribeTimeout   = 120
	defaultLLMBaseURL          = "https://api.groq.com/openai/v1/chat/completions"
	defaultLLMModel            = "llama-3.3-70b-versatile"
	defaultLLMTimeout          = 60
	defaultSummaryShortFocus   = 2
	defaultSummaryBalanced     = 5
	defaultSummaryDetailed     = 9
	defaultWorkers             = 4
	defaultPollInterval        = 2
	defaultStageDelay          = 1
	defaultClaimTimeout        = 300
	defaultErrorRetryInterval  = 5
	defaultShutdownGrace       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscribeBaseURL,
			Model:          defaultTranscribeModel,
			TimeoutSeconds: defaultTranscribeTimeout,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Summary: Summary{
			ShortFocus:    defaultSummaryShortFocus,
			BalancedFocus: defaultSummaryBalanced,
			DetailedFocus: defaultSummaryDetailed,
		},
		Workflow: Workflow{
			Workers:              defaultWorkers,
			PollInterval:         defaultPollInterval,
			StageDelay:           defaultStageDelay,
			ClaimTimeout:         defaultClaimTimeout,
			ErrorRetryInterval:   defaultErrorRetryInterval,
			ShutdownGraceSeconds: defaultShutdownGrace,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

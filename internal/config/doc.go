// Package config loads, validates, and normalizes talkcoach configuration.
//
// Configuration lives in a TOML file (default ~/.config/talkcoach/config.toml)
// with sections for paths, the transcription and chat-completion services,
// summary focus levels, scheduler workflow timing, and logging. Load applies
// defaults, expands ~ paths, resolves ${ENV_VAR} secrets, and validates the
// result so the rest of the daemon can trust the values it receives.
package config

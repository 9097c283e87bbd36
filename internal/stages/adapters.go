package stages

import (
	"context"

	"talkcoach/internal/services/transcribe"
)

// Stage names shared by both artifact kinds.
const (
	StageTranscription = "transcription"
	StageRecap         = "recap"
	StageSummary       = "summary"
	StageAnalysis      = "analysis"
	StageCoaching      = "coaching"
)

// ChatClient is the slice of the LLM client the stages need.
type ChatClient interface {
	CompleteText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Transcriber converts one audio file into text.
type Transcriber = transcribe.Client

// Adapters bundles the external inference clients the stage tables close
// over.
type Adapters struct {
	Chat        ChatClient
	Transcriber Transcriber
}

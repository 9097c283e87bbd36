package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talkcoach/internal/config"
	"talkcoach/internal/ledger"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/services"
	"talkcoach/internal/services/transcribe"
)

// Definitions returns the full stage table for both artifact kinds, ready
// for pipeline.NewRegistry.
func Definitions(cfg *config.Config, adapters Adapters) []pipeline.Definition {
	defs := ConversationDefinitions(cfg, adapters)
	return append(defs, InterviewDefinitions(adapters)...)
}

// ConversationDefinitions returns the stage table for conversation
// artifacts.
func ConversationDefinitions(cfg *config.Config, adapters Adapters) []pipeline.Definition {
	return []pipeline.Definition{
		{
			Kind: ledger.KindConversation,
			Name: StageTranscription,
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				path := strings.TrimSpace(artifact.AudioPath)
				if path == "" {
					return nil, services.Wrap(services.ErrInvalidInput, StageTranscription, "build input",
						"conversation has no audio path", nil)
				}
				return path, nil
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				path := input.(string)
				resp, err := adapters.Transcriber.Transcribe(ctx, transcribe.Request{FilePath: path})
				if err != nil {
					return nil, err
				}
				if resp.Text == "" {
					return nil, services.Wrap(services.ErrAdapter, StageTranscription, "transcribe",
						"transcription produced an empty transcript", nil)
				}
				return marshalResult(TranscriptResult{
					Text:     resp.Text,
					Language: resp.Language,
					Duration: resp.Duration,
				})
			},
		},
		{
			Kind:         ledger.KindConversation,
			Name:         StageRecap,
			Dependencies: []string{StageTranscription},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				return upstreamText(artifact, StageTranscription)
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				transcript := input.(string)
				recap, err := adapters.Chat.CompleteText(ctx, recapSystemPrompt, "Transcript (raw): "+transcript)
				if err != nil {
					return nil, err
				}
				return marshalResult(RecapResult{Text: strings.TrimSpace(recap)})
			},
		},
		{
			Kind:         ledger.KindConversation,
			Name:         StageSummary,
			Dependencies: []string{StageRecap},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				return upstreamText(artifact, StageRecap)
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				return summarize(ctx, adapters.Chat, cfg.Summary, input.(string))
			},
		},
		{
			Kind:         ledger.KindConversation,
			Name:         StageAnalysis,
			Dependencies: []string{StageRecap},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				return upstreamText(artifact, StageRecap)
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				return analyze(ctx, adapters.Chat, input.(string))
			},
		},
		{
			Kind:         ledger.KindConversation,
			Name:         StageCoaching,
			Dependencies: []string{StageTranscription},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				// Coaching reads the raw transcript, not the recap: the
				// coach needs the seeker's literal wording.
				return upstreamText(artifact, StageTranscription)
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				return coach(ctx, adapters.Chat, input.(string))
			},
		},
	}
}

// summarize produces the three focus level variants. Balanced and detailed
// must succeed for the stage to complete; a failed short variant is kept as
// a sub-result.
func summarize(ctx context.Context, chat ChatClient, cfg config.Summary, text string) (json.RawMessage, error) {
	variant := func(focus int) SummaryVariant {
		message := fmt.Sprintf("Transcript (raw): %s\n\nFocus level (from 1 - 10): %d", text, focus)
		summary, err := chat.CompleteText(ctx, summarySystemPrompt, message)
		if err != nil {
			return SummaryVariant{Focus: focus, Error: err.Error()}
		}
		return SummaryVariant{Focus: focus, Text: strings.TrimSpace(summary)}
	}

	result := SummaryResult{
		Short:    variant(cfg.ShortFocus),
		Balanced: variant(cfg.BalancedFocus),
		Detailed: variant(cfg.DetailedFocus),
	}
	if result.Balanced.Error != "" || result.Detailed.Error != "" {
		detail := result.Detailed.Error
		if detail == "" {
			detail = result.Balanced.Error
		}
		return nil, services.Wrap(services.ErrAdapter, StageSummary, "summarize",
			"required summary variants failed: "+detail, nil)
	}
	return marshalResult(result)
}

func analyze(ctx context.Context, chat ChatClient, text string) (json.RawMessage, error) {
	content, err := chat.CompleteJSON(ctx, analysisSystemPrompt, "Transcript:\n"+text)
	if err != nil {
		return nil, err
	}
	analysis, err := decodeAnalysis(content)
	if err != nil {
		return nil, services.Wrap(services.ErrAdapter, StageAnalysis, "analyze", err.Error(), nil)
	}
	return marshalResult(analysis)
}

func coach(ctx context.Context, chat ChatClient, transcript string) (json.RawMessage, error) {
	message := "Conversation Transcript:\n---\n" + transcript + "\n---"
	feedback, err := chat.CompleteText(ctx, coachingSystemPrompt, message)
	if err != nil {
		return nil, err
	}
	return marshalResult(CoachingResult{Feedback: strings.TrimSpace(feedback)})
}

package stages

import (
	"encoding/json"
	"fmt"
	"strings"

	"talkcoach/internal/ledger"
	"talkcoach/internal/services"
	"talkcoach/internal/services/llm"
)

// TranscriptResult is the payload of a completed conversation transcription
// stage.
type TranscriptResult struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// RecapResult is the payload of a completed recap stage.
type RecapResult struct {
	Text string `json:"text"`
}

// SummaryVariant is one focus level of the summary stage. Either Text or
// Error is set.
type SummaryVariant struct {
	Focus int    `json:"focus"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// SummaryResult holds the three focus levels of a completed summary stage.
// The stage completes when balanced and detailed succeeded; a failed short
// variant is recorded but does not fail the stage.
type SummaryResult struct {
	Short    SummaryVariant `json:"short"`
	Balanced SummaryVariant `json:"balanced"`
	Detailed SummaryVariant `json:"detailed"`
}

// Sentiment is the sentiment block of an analysis result.
type Sentiment struct {
	Label     string `json:"label"`
	Reasoning string `json:"reasoning"`
}

// AnalysisResult is the payload of a completed analysis stage.
type AnalysisResult struct {
	TalkTimeRatio map[string]float64 `json:"talk_time_ratio"`
	Sentiment     Sentiment          `json:"sentiment"`
	Topics        []string           `json:"topics"`
}

// CoachingResult is the payload of a completed coaching stage.
type CoachingResult struct {
	Feedback string `json:"feedback"`
}

// AnswerTranscript is the sub-result of one interview answer recording.
// Either Text or Error is set.
type AnswerTranscript struct {
	Index int    `json:"index"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// InterviewTranscriptResult is the payload of a completed interview
// transcription stage. Text aggregates the successful answers; Answers
// records every per-answer outcome including failures.
type InterviewTranscriptResult struct {
	Text    string             `json:"text"`
	Answers []AnswerTranscript `json:"answers"`
}

// decodeAnalysis parses and validates a model-produced analysis payload.
// All three top-level keys must be present and well typed.
func decodeAnalysis(content string) (AnalysisResult, error) {
	var probe struct {
		TalkTimeRatio *map[string]float64 `json:"talk_time_ratio"`
		Sentiment     *Sentiment          `json:"sentiment"`
		Topics        *[]string           `json:"topics"`
	}
	if err := llm.DecodeLLMJSON(content, &probe); err != nil {
		return AnalysisResult{}, fmt.Errorf("parse analysis payload: %w", err)
	}
	if probe.TalkTimeRatio == nil || probe.Sentiment == nil || probe.Topics == nil {
		return AnalysisResult{}, fmt.Errorf("analysis payload missing required keys (talk_time_ratio, sentiment, topics)")
	}
	if strings.TrimSpace(probe.Sentiment.Label) == "" {
		return AnalysisResult{}, fmt.Errorf("analysis payload has empty sentiment label")
	}
	return AnalysisResult{
		TalkTimeRatio: *probe.TalkTimeRatio,
		Sentiment:     *probe.Sentiment,
		Topics:        *probe.Topics,
	}, nil
}

// upstreamText reads a text-bearing upstream result out of the artifact's
// ledger. The dependency gate in the executor means the stage should always
// be completed here; a missing or empty payload is an input error.
func upstreamText(artifact *ledger.Artifact, stage string) (string, error) {
	state, ok := artifact.Stage(stage)
	if !ok || state.Status != ledger.StatusCompleted {
		return "", services.Wrap(services.ErrDependency, stage, "read result",
			fmt.Sprintf("stage %s has no completed result", stage), nil)
	}
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(state.Result, &payload); err != nil {
		return "", services.Wrap(services.ErrInvalidInput, stage, "read result",
			"result payload is not valid JSON", err)
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return "", services.Wrap(services.ErrInvalidInput, stage, "read result",
			fmt.Sprintf("stage %s result has no text", stage), nil)
	}
	return text, nil
}

func marshalResult(v any) (json.RawMessage, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode stage result: %w", err)
	}
	return encoded, nil
}

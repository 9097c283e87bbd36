package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talkcoach/internal/ledger"
	"talkcoach/internal/pipeline"
	"talkcoach/internal/services"
	"talkcoach/internal/services/transcribe"
)

type interviewCoachingInput struct {
	transcript string
	analysis   json.RawMessage
}

// InterviewDefinitions returns the stage table for interview artifacts.
func InterviewDefinitions(adapters Adapters) []pipeline.Definition {
	return []pipeline.Definition{
		{
			Kind: ledger.KindInterview,
			Name: StageTranscription,
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				if len(artifact.AnswerAudio) == 0 {
					return nil, services.Wrap(services.ErrInvalidInput, StageTranscription, "build input",
						"interview has no answer recordings", nil)
				}
				answers := make([]string, len(artifact.AnswerAudio))
				copy(answers, artifact.AnswerAudio)
				return answers, nil
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				return transcribeAnswers(ctx, adapters.Transcriber, input.([]string))
			},
		},
		{
			Kind:         ledger.KindInterview,
			Name:         StageAnalysis,
			Dependencies: []string{StageTranscription},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				return upstreamText(artifact, StageTranscription)
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				return analyze(ctx, adapters.Chat, input.(string))
			},
		},
		{
			Kind:         ledger.KindInterview,
			Name:         StageCoaching,
			Dependencies: []string{StageTranscription, StageAnalysis},
			BuildInput: func(artifact *ledger.Artifact) (any, error) {
				transcript, err := upstreamText(artifact, StageTranscription)
				if err != nil {
					return nil, err
				}
				state, ok := artifact.Stage(StageAnalysis)
				if !ok || state.Status != ledger.StatusCompleted {
					return nil, services.Wrap(services.ErrDependency, StageCoaching, "build input",
						"analysis stage has no completed result", nil)
				}
				return interviewCoachingInput{transcript: transcript, analysis: state.Result}, nil
			},
			Invoke: func(ctx context.Context, input any) (json.RawMessage, error) {
				in := input.(interviewCoachingInput)
				message := fmt.Sprintf(
					"Conversation Analysis (JSON):\n%s\n\nInterview Answers Transcript:\n---\n%s\n---",
					string(in.analysis), in.transcript,
				)
				feedback, err := adapters.Chat.CompleteText(ctx, coachingSystemPrompt, message)
				if err != nil {
					return nil, err
				}
				return marshalResult(CoachingResult{Feedback: strings.TrimSpace(feedback)})
			},
		},
	}
}

// transcribeAnswers transcribes each answer recording independently. One
// bad recording does not sink the stage; the stage fails only when every
// answer failed.
func transcribeAnswers(ctx context.Context, transcriber Transcriber, answers []string) (json.RawMessage, error) {
	result := InterviewTranscriptResult{
		Answers: make([]AnswerTranscript, 0, len(answers)),
	}
	var (
		aggregate []string
		succeeded int
	)
	for i, path := range answers {
		index := i + 1
		resp, err := transcriber.Transcribe(ctx, transcribe.Request{FilePath: path})
		if err == nil && resp.Text == "" {
			err = fmt.Errorf("empty transcript for answer %d", index)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Answers = append(result.Answers, AnswerTranscript{Index: index, Error: err.Error()})
			continue
		}
		succeeded++
		result.Answers = append(result.Answers, AnswerTranscript{Index: index, Text: resp.Text})
		aggregate = append(aggregate, fmt.Sprintf("Answer %d: %s", index, resp.Text))
	}
	if succeeded == 0 {
		return nil, services.Wrap(services.ErrAdapter, StageTranscription, "transcribe answers",
			fmt.Sprintf("all %d answer transcriptions failed", len(answers)), nil)
	}
	result.Text = strings.Join(aggregate, "\n\n")
	return marshalResult(result)
}

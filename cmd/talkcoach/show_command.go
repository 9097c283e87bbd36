package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"talkcoach/internal/ledger"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var stageName string

	cmd := &cobra.Command{
		Use:   "show <artifact-id>",
		Short: "Show an artifact's stage ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				artifact, err := findArtifact(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				if stageName != "" {
					return printStageResult(cmd, artifact, stageName)
				}

				registry, err := ctx.newRegistry()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:           %s\n", artifact.ID)
				fmt.Fprintf(out, "Kind:         %s\n", displayLabel(string(artifact.Kind)))
				fmt.Fprintf(out, "Title:        %s\n", artifact.Title)
				fmt.Fprintf(out, "Source ready: %s\n", yesNo(artifact.SourceReady))
				if artifact.AudioPath != "" {
					fmt.Fprintf(out, "Audio:        %s\n", artifact.AudioPath)
				}
				for i, answer := range artifact.AnswerAudio {
					fmt.Fprintf(out, "Answer %d:     %s\n", i+1, answer)
				}
				fmt.Fprintf(out, "Created:      %s\n", formatTimestamp(artifact.CreatedAt))
				fmt.Fprintf(out, "Updated:      %s\n", formatTimestamp(artifact.UpdatedAt))

				rows := make([][]string, 0, len(artifact.Stages))
				for _, stage := range registry.Stages(artifact.Kind) {
					state, ok := artifact.Stage(stage)
					if !ok {
						continue
					}
					rows = append(rows, []string{
						displayLabel(stage),
						displayLabel(string(state.Status)),
						formatTimestamp(state.UpdatedAt),
						state.ErrorMessage,
					})
				}
				table := renderTable(
					[]string{"Stage", "Status", "Updated", "Error"},
					rows,
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&stageName, "stage", "s", "", "Print the stored result for a single stage")
	return cmd
}

func printStageResult(cmd *cobra.Command, artifact *ledger.Artifact, stage string) error {
	state, ok := artifact.Stage(stage)
	if !ok {
		return fmt.Errorf("artifact has no stage %q", stage)
	}
	if state.Status != ledger.StatusCompleted {
		return fmt.Errorf("stage %s is %s, no result available", stage, state.Status)
	}

	var pretty map[string]any
	if err := json.Unmarshal(state.Result, &pretty); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(state.Result))
		return nil
	}
	encoded, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// findArtifact resolves a full artifact ID or a unique ID prefix.
func findArtifact(ctx context.Context, store *ledger.Store, idArg string) (*ledger.Artifact, error) {
	idArg = strings.TrimSpace(idArg)
	if idArg == "" {
		return nil, errors.New("artifact id is required")
	}

	artifact, err := store.Get(ctx, idArg)
	if err == nil {
		return artifact, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	artifacts, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *ledger.Artifact
	for _, candidate := range artifacts {
		if !strings.HasPrefix(candidate.ID, idArg) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("artifact id %q is ambiguous", idArg)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("artifact %q not found", idArg)
	}
	return match, nil
}

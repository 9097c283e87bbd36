package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"talkcoach/internal/ledger"
)

var audioFileExtensions = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".m4a":  {},
	".ogg":  {},
	".flac": {},
	".webm": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Register a recording with the processing pipeline",
	}

	addCmd.AddCommand(newAddConversationCommand(ctx))
	addCmd.AddCommand(newAddInterviewCommand(ctx))

	return addCmd
}

func newAddConversationCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "conversation <audio-file>",
		Short: "Register a recorded conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			audioPath, err := resolveAudioFile(args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
			}

			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				drv, registry, err := ctx.newDriver(store)
				if err != nil {
					return err
				}
				artifact, err := store.Create(cmd.Context(), ledger.NewArtifactParams{
					Kind:        ledger.KindConversation,
					Title:       title,
					SourceReady: true,
					AudioPath:   audioPath,
					Stages:      registry.Stages(ledger.KindConversation),
				})
				if err != nil {
					return err
				}
				if err := drv.OnArtifactCreated(cmd.Context(), artifact.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered conversation %s (%s)\n", shortID(artifact.ID), filepath.Base(audioPath))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Artifact title (defaults to the file name)")
	return cmd
}

func newAddInterviewCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "interview <answer-file>...",
		Short: "Register a multi-answer mock interview",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := make([]string, 0, len(args))
			for _, arg := range args {
				path, err := resolveAudioFile(arg)
				if err != nil {
					return err
				}
				answers = append(answers, path)
			}
			if title == "" {
				title = fmt.Sprintf("Interview (%d answers)", len(answers))
			}

			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				drv, registry, err := ctx.newDriver(store)
				if err != nil {
					return err
				}
				artifact, err := store.Create(cmd.Context(), ledger.NewArtifactParams{
					Kind:        ledger.KindInterview,
					Title:       title,
					SourceReady: true,
					AnswerAudio: answers,
					Stages:      registry.Stages(ledger.KindInterview),
				})
				if err != nil {
					return err
				}
				if err := drv.OnArtifactCreated(cmd.Context(), artifact.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered interview %s with %d answers\n", shortID(artifact.ID), len(answers))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Artifact title")
	return cmd
}

func resolveAudioFile(arg string) (string, error) {
	absPath, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file does not exist: %s", absPath)
		}
		return "", fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", absPath)
	}

	ext := strings.ToLower(filepath.Ext(info.Name()))
	if _, ok := audioFileExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported audio extension %q", ext)
	}
	return absPath, nil
}

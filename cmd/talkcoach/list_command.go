package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"talkcoach/internal/ledger"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var kindFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				artifacts, err := store.List(cmd.Context())
				if err != nil {
					return err
				}

				kind := strings.ToLower(strings.TrimSpace(kindFilter))
				rows := make([][]string, 0, len(artifacts))
				for _, artifact := range artifacts {
					if kind != "" && string(artifact.Kind) != kind {
						continue
					}
					rows = append(rows, []string{
						shortID(artifact.ID),
						displayLabel(string(artifact.Kind)),
						artifact.Title,
						stageProgress(artifact),
						formatTimestamp(artifact.CreatedAt),
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No artifacts registered")
					return nil
				}

				table := renderTable(
					[]string{"ID", "Kind", "Title", "Stages", "Created"},
					rows,
					4,
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&kindFilter, "kind", "k", "", "Filter by artifact kind (conversation or interview)")
	return cmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"talkcoach/internal/ledger"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <artifact-id> <stage>",
		Short: "Re-run a stage and everything downstream of it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			stage := strings.ToLower(strings.TrimSpace(args[1]))
			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				artifact, err := findArtifact(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}

				if api != nil {
					if err := api.Regenerate(artifact.ID, stage); err != nil {
						return err
					}
				} else {
					drv, _, err := ctx.newDriver(store)
					if err != nil {
						return err
					}
					if err := drv.OnUpstreamRegenerated(cmd.Context(), artifact.ID, stage); err != nil {
						return err
					}
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s regeneration for artifact %s\n", stage, shortID(artifact.ID))
				if api == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running; the stage will run once it starts")
				}
				return nil
			})
		},
	}
}

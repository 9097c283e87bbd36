package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"talkcoach/internal/ledger"
	"talkcoach/internal/scheduler"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(api *apiClient, store *ledger.Store) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				if api != nil {
					status, err := api.Status()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
					printPipelineCounts(cmd, pipelineCounts{
						Artifacts:    status.Artifacts,
						Pending:      status.Pending,
						Processing:   status.Processing,
						Completed:    status.Completed,
						Failed:       status.Failed,
						QueuePending: status.QueuePending,
					}, colorize)
					fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
					return nil
				}

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				queuePending, err := scheduler.NewQueue(store).Pending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
				printPipelineCounts(cmd, pipelineCounts{
					Artifacts:    health.Artifacts,
					Pending:      health.Pending,
					Processing:   health.Processing,
					Completed:    health.Completed,
					Failed:       health.Failed,
					QueuePending: queuePending,
				}, colorize)
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, store.Path(), colorize))
				return nil
			})
		},
	}
}

type pipelineCounts struct {
	Artifacts    int
	Pending      int
	Processing   int
	Completed    int
	Failed       int
	QueuePending int
}

func printPipelineCounts(cmd *cobra.Command, counts pipelineCounts, colorize bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderStatusLine("Artifacts", statusInfo, fmt.Sprintf("%d", counts.Artifacts), colorize))
	fmt.Fprintln(out, renderStatusLine("Stages pending", statusInfo, fmt.Sprintf("%d", counts.Pending), colorize))
	fmt.Fprintln(out, renderStatusLine("Stages processing", statusInfo, fmt.Sprintf("%d", counts.Processing), colorize))
	fmt.Fprintln(out, renderStatusLine("Stages completed", statusOK, fmt.Sprintf("%d", counts.Completed), colorize))
	kind := statusInfo
	if counts.Failed > 0 {
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Stages failed", kind, fmt.Sprintf("%d", counts.Failed), colorize))
	fmt.Fprintln(out, renderStatusLine("Queued jobs", statusInfo, fmt.Sprintf("%d", counts.QueuePending), colorize))
}

package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewArchiveCmd создаёт группу команд для чтения архива.
func NewArchiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse finished tasks",
	}

	cmd.AddCommand(
		newArchiveListCmd(clientFn, outputFn),
		newArchiveShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newArchiveListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListArchiveOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := clientFn().ListArchive(cmd.Context(), opts)
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKER", "EXECUTOR", "STATUS", "DURATION_MS", "FINISHED"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.WorkerID, t.Executor, t.Status, strconv.FormatInt(t.DurationMs, 10), t.FinishedAt}
			}

			outputFn().Print(headers, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (SUCCEEDED, FAILED)")
	cmd.Flags().StringVar(&opts.WorkerID, "worker-id", "", "Filter by worker ID")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of results to skip")

	return cmd
}

func newArchiveShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show archived task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := clientFn().GetArchived(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outputFn().Details([][2]string{
				{"ID", t.ID},
				{"Worker", t.WorkerID},
				{"Executor", t.Executor},
				{"Max running time", strconv.Itoa(t.MaxRunningTime) + "m"},
				{"Status", t.Status},
				{"Message", t.Message},
				{"Result", string(t.Result)},
				{"Started", t.StartedAt},
				{"Finished", t.FinishedAt},
				{"Duration ms", strconv.FormatInt(t.DurationMs, 10)},
			}, t)
			return nil
		},
	}
}

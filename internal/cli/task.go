package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для работы с tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Submit and track tasks",
	}

	cmd.AddCommand(
		newTaskSubmitCmd(clientFn, outputFn),
		newTaskStatusCmd(clientFn, outputFn),
		newTaskWaitCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var maxRunningTime int
	var props []string
	var body string
	var bodyFile string
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := SubmitRequest{
				MaxRunningTime: maxRunningTime,
				Body:           []byte(body),
			}

			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body file: %w", err)
				}
				req.Body = data
			}

			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			req.Properties = properties

			resp, err := client.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}

			if !wait {
				out.Success(fmt.Sprintf("Task submitted: %s", resp.ID))
				out.Details([][2]string{
					{"ID", resp.ID},
					{"Accepted", fmt.Sprintf("%t", resp.Accepted)},
				}, resp)
				return nil
			}

			out.Success(fmt.Sprintf("Task submitted: %s, waiting...", resp.ID))
			status, err := client.Wait(cmd.Context(), resp.ID, interval)
			if err != nil {
				return err
			}
			printStatus(out, status)
			return statusError(status)
		},
	}

	cmd.Flags().IntVar(&maxRunningTime, "max-running-time", 1, "Maximum running time in minutes")
	cmd.Flags().StringSliceVar(&props, "property", nil, "Task properties as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&body, "body", "", "Task body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read task body from file")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for task completion")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Status poll interval for --wait")
	cmd.MarkFlagsMutuallyExclusive("body", "body-file")

	return cmd
}

func newTaskStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show task status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(outputFn(), status)
			return nil
		},
	}
}

func newTaskWaitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Wait until the task completes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().Wait(cmd.Context(), args[0], interval)
			if err != nil {
				return err
			}
			printStatus(outputFn(), status)
			return statusError(status)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Status poll interval")

	return cmd
}

// parseProperties разбирает список KEY=VALUE.
func parseProperties(kvs []string) (map[string]string, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	props := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property format %q, expected KEY=VALUE", kv)
		}
		props[key] = value
	}
	return props, nil
}

func printStatus(out *Output, s *StatusResponse) {
	out.Details([][2]string{
		{"ID", s.ID},
		{"Status", s.Status},
		{"Message", s.Message},
		{"Result", string(s.Result)},
	}, s)
}

// statusError превращает неуспешное завершение в ошибку (ненулевой exit code).
func statusError(s *StatusResponse) error {
	switch {
	case s.Status == "NOT_FOUND":
		return fmt.Errorf("task %s not found", s.ID)
	case s.IsCompleted && !s.IsSuccessful:
		return fmt.Errorf("task %s failed: %s", s.ID, s.Message)
	}
	return nil
}

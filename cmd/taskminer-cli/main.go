// TaskMiner CLI — инструмент командной строки для отправки tasks
// и чтения архива через HTTP API.
//
// Использование:
//
//	taskminer [--api-url URL] [--api-key KEY] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	task     Отправка и отслеживание tasks
//	archive  Архив завершённых tasks
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/TaskMiner/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var apiKey string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "taskminer",
		Short:         "TaskMiner CLI — submit and track mining tasks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("TASKMINER_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("TASKMINER_API_KEY"), "API key (X-Api-Key)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, apiKey) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewArchiveCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

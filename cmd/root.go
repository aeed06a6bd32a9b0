package cmd

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "lobechat",
	Short: "Chat gateway for LLM providers",
	Long: `lobechat is the server-and-client glue of a chat application: an HTTP
gateway that authenticates requests, dispatches them to a configured LLM
provider and streams the completion back, plus a terminal client that
talks to it.

Examples:
  lobechat serve --config lobechat.yaml
  lobechat chat --model gpt-4 "explain fsnotify in one paragraph"`,
	SilenceUsage: true,
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(func() {
		// Missing .env is fine; the environment may carry everything.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
}

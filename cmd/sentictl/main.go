package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spacesedan/sentibot/config"
	"github.com/spacesedan/sentibot/internal/clients"
	"github.com/spacesedan/sentibot/internal/logging"
	"github.com/spf13/cobra"
)

var (
	apiURL   string
	userID   int64
	logLevel string
)

func newClient() *clients.SentimentAPIClient {
	return clients.NewSentimentAPIClient(apiURL, clients.RetryPolicy{MaxRetries: 3})
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "sentictl",
		Short: "Talk to the sentiment analysis API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.InitLogger(logLevel)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api", defaultAPIURL(), "sentiment API base URL")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "log level")

	analyze := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Classify the sentiment of a text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var uid *int64
			if cmd.Flags().Changed("user") {
				uid = &userID
			}
			res, err := newClient().Analyze(cmd.Context(), strings.Join(args, " "), uid)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), clients.FormatResult(res))
			return nil
		},
	}
	analyze.Flags().Int64Var(&userID, "user", 0, "user id to attribute the request to")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show service-wide statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), clients.FormatStats(newClient().FetchStats(cmd.Context())))
			return nil
		},
	}

	root.AddCommand(analyze, stats)
	return root
}

func defaultAPIURL() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)

	if url := os.Getenv("API_URL"); url != "" {
		return url
	}
	port := os.Getenv("API_PORT")
	if _, err := strconv.Atoi(port); err != nil {
		port = "8000"
	}
	return "http://localhost:" + port
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

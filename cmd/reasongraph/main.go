// Command reasongraph runs chain-of-thought reasoning sessions and serves
// them over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aixgo-dev/reasongraph/pkg/observability"
)

// Version information (set via ldflags)
var Version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	observability.Version = Version

	cmd := &cobra.Command{
		Use:           "reasongraph",
		Short:         "Step-by-step reasoning with a similarity graph of the steps",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", getEnv("CONFIG_FILE", "reasongraph.yaml"), "configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format override (json, console)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newReplCmd(opts),
		newSimilarCmd(opts),
	)
	return cmd
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

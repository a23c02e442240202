// Command claimwatch runs claim analyses and invoice checks against local
// CSV or JSON exports.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "claimwatch",
		Short:         "Procurement claim forensics",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	logger := func() zerolog.Logger {
		lvl, err := zerolog.ParseLevel(logLevel)
		if err != nil || logLevel == "" {
			lvl = zerolog.WarnLevel
		}
		return zerolog.New(zerolog.ConsoleWriter{Out: root.ErrOrStderr(), NoColor: true}).Level(lvl).With().Timestamp().Logger()
	}

	root.AddCommand(analyzeCmd(logger))
	root.AddCommand(verifyCmd())
	return root
}

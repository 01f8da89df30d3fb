package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "grantwatch",
		Short:         "Poll Korean grant-announcement sources and notify new matches",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default ./grantwatch.yaml if present)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: console or json")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newKeywordsCmd(flags))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "grantwatch %s\n", version)
		},
	})
	return root
}

package main

import (
	"github.com/spf13/cobra"

	"subtrans/internal/config"
	"subtrans/pkg/log"
)

// configPath resolves the config file location: explicit flag first,
// then the SUBTRANS_CONFIG / per-user default.
func configPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return config.FilePath()
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	rootCmd := &cobra.Command{
		Use:           "subtrans",
		Short:         "Context-aware subtitle translation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitLogger(log.ParseLevel(logLevelFlag))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newConfigureCommand(&configFlag))
	rootCmd.AddCommand(newShowConfigCommand(&configFlag))
	rootCmd.AddCommand(newTranslateCommand(&configFlag))

	return rootCmd
}

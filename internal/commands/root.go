package commands

import (
	"github.com/spf13/cobra"

	"github.com/movements-dev/triodos-movements/internal/buildinfo"
	"github.com/movements-dev/triodos-movements/internal/logger"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:     "triodos-movements",
		Short:   "Export a year of Triodos bank account movements",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(logLevel)
			if err != nil {
				return err
			}
			cmd.SetContext(logger.WithContext(cmd.Context(), log))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newExtractCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

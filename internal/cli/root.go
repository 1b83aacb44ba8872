package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/consentwatch/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "consentwatch",
	Short: "Rule-based privacy and terms-of-service signal detector",
	Long: "Evaluates captured HTTP exchanges against privacy and terms-of-service\n" +
		"catalogues, keeps a bounded report history per domain and scores free text\n" +
		"for sensitive content before it is submitted.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init must work with a broken config file; version needs none.
		if cmd == initCmd || cmd == versionCmd {
			return nil
		}
		_, err := config.Init(configPath)
		if errors.Is(err, config.ErrAlreadyInitialized) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default: $"+config.EnvConfig+" or ~/.consentwatch/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

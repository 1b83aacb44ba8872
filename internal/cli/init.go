package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/consentwatch/internal/config"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Long: `Creates the config directory and writes config.yaml with the built-in
defaults. The file is written to --config when given, otherwise to
~/.consentwatch/config.yaml.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(configPath)

	content, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("generate default config: %w", err)
	}
	wrote, err := writeIfMissing(path, content)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !wrote {
		fmt.Fprintf(out, "%s already exists (use --force to overwrite).\n", path)
		return nil
	}
	fmt.Fprintf(out, "Created %s\n\n", path)
	fmt.Fprintln(out, "Enable text scoring by setting scorer.api_key or $"+config.EnvAPIKey+".")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

func defaultConfigYAML() (string, error) {
	data, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", err
	}
	header := "# consentwatch configuration.\n" +
		"# history.backend: memory, jsonl, sqlite or postgres.\n" +
		"# catalogue: optional YAML overlay on the built-in detection tables.\n\n"
	return header + string(data), nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

var initCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write the default CodeCarbon stack file",
	Annotations: map[string]string{skipStackAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(stackFile); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", stackFile)
		}

		data, err := yaml.Marshal(config.DefaultStack())
		if err != nil {
			return fmt.Errorf("failed to marshal default stack: %w", err)
		}

		header := "# CodeCarbon development stack.\n" +
			"# Variables use ${VAR:-default} and resolve from the host\n" +
			"# environment, then .env, then the default.\n"
		if err := os.WriteFile(stackFile, append([]byte(header), data...), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", stackFile, err)
		}

		fmt.Printf("Wrote %s. Run 'carbonstack up' to start the stack.\n", stackFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

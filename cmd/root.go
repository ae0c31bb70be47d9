package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

// Loaded stack shared by the subcommands.
var cfg *config.Stack

var (
	stackFile string
	envFile   string
)

// Commands annotated with this skip the stack file preload (init has
// nothing to load yet, remote only talks to AWS).
const skipStackAnnotation = "carbonstack.skipStack"

var rootCmd = &cobra.Command{
	Use:   "carbonstack",
	Short: "carbonstack: CodeCarbon development stack management",
	// PersistentPreRunE runs before ANY command (up, down, etc.)
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipStackAnnotation] == "true" {
			return nil
		}
		loaded, err := config.Load(stackFile, envFile)
		if err != nil {
			return err
		}

		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&stackFile, "file", "f", "carbonstack.yaml", "stack definition file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with variable overrides")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/compose"
	"github.com/bigscience-workshop/carbonstack/internal/config"
)

var renderResolve bool

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Emit the stack as a docker-compose manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack := cfg
		if renderResolve {
			resolved, err := cfg.Resolve(config.OSLookup)
			if err != nil {
				return err
			}
			stack = resolved
		}

		data, err := compose.Render(stack)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderResolve, "resolve", false, "expand ${VAR:-default} references before rendering")
	rootCmd.AddCommand(renderCmd)
}

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the stack definition for structural problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolved, err := cfg.Resolve(config.OSLookup)
		if err != nil {
			return err
		}
		if err := resolved.Validate(); err != nil {
			return err
		}

		names := make([]string, 0, len(resolved.Services))
		for name := range resolved.Services {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Printf("Stack %s is valid.\n", resolved.Name)
		for _, name := range names {
			svc := resolved.Services[name]
			state := "enabled"
			if !svc.IsEnabled() {
				state = "disabled"
			}
			fmt.Printf("  %s (%s)", name, state)
			for _, p := range svc.Ports {
				fmt.Printf(" %s->%s", config.HostPort(p), config.ContainerPort(p))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/docker"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the stack (named volumes survive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		ctx := context.Background()

		// Stop in reverse start order so dependents go before the
		// services they lean on.
		order, err := cfg.StartOrder()
		if err != nil {
			return err
		}
		for i := len(order) - 1; i >= 0; i-- {
			name := order[i]
			if err := mgr.StopAndRemoveContainer(ctx, cfg.Name, name, cfg.Services[name]); err != nil {
				fmt.Printf("Error cleaning up %s: %v\n", name, err)
			}
		}

		for name, net := range cfg.Networks {
			if net.External {
				continue
			}
			if err := mgr.RemoveNetwork(ctx, name); err != nil {
				fmt.Printf("Error removing network %s: %v\n", name, err)
			}
		}

		fmt.Println("Stack stopped. Named volumes were kept.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downCmd)
}

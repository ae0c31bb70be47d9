package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/config"
	"github.com/bigscience-workshop/carbonstack/internal/docker"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the development stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The stack is already loaded by PersistentPreRunE in root.go
		resolved, err := cfg.Resolve(config.OSLookup)
		if err != nil {
			return err
		}
		if err := resolved.Validate(); err != nil {
			return err
		}

		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		ctx := context.Background()

		for name, net := range resolved.Networks {
			if net.External {
				continue
			}
			if err := mgr.EnsureNetwork(ctx, name, net.Driver); err != nil {
				return err
			}
		}

		order, err := resolved.StartOrder()
		if err != nil {
			return err
		}

		// Services a later service depends on get a readiness gate
		// before their dependents start. Started-but-not-ready is the
		// classic race between an app and its database.
		gated := map[string]bool{}
		for _, name := range order {
			for _, dep := range resolved.Services[name].DependsOn {
				gated[dep] = true
			}
		}

		for _, name := range order {
			svc := resolved.Services[name]

			for _, spec := range svc.Volumes {
				if m := config.ParseMount(spec); m.Kind == config.MountNamed {
					if err := mgr.EnsureVolume(ctx, resolved.Name, m.Source); err != nil {
						return err
					}
				}
			}

			image, err := mgr.EnsureImage(ctx, resolved.Name, name, svc)
			if err != nil {
				return err
			}
			if err := mgr.StartService(ctx, resolved.Name, name, image, svc); err != nil {
				return err
			}

			if gated[name] {
				if err := mgr.WaitReady(ctx, resolved.Name, name, svc); err != nil {
					return err
				}
			}
		}

		fmt.Println("Stack is up.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}

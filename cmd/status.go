package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/docker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the stack's containers",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}

		containers, err := mgr.ListContainers(context.Background(), cfg.Name)
		if err != nil {
			return err
		}

		if len(containers) == 0 {
			fmt.Println("No stack containers found.")
			return nil
		}

		// Use tabwriter to print pretty columns
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tNAME\tIMAGE\tSTATUS\tPORTS")

		for _, c := range containers {
			// c.Names[0] is usually "/codecarbon-postgres", strip the slash
			name := c.Names[0][1:]
			service := c.Labels[docker.LabelService]

			ports := ""
			for _, p := range c.Ports {
				if p.PublicPort != 0 {
					ports += fmt.Sprintf("%d->%d/tcp ", p.PublicPort, p.PrivatePort)
				}
			}

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", service, name, c.Image, c.Status, ports)
		}
		w.Flush()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

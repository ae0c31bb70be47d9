package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/docker"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Show logs for one service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serviceName := args[0]
		svc, ok := cfg.Services[serviceName]
		if !ok {
			return fmt.Errorf("service %s is not declared in %s", serviceName, stackFile)
		}

		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}

		containerName := docker.ContainerName(cfg.Name, serviceName, svc)
		return mgr.StreamLogs(context.Background(), containerName, logsFollow)
	},
}

func init() {
	logsCmd.Flags().BoolVar(&logsFollow, "follow", false, "keep streaming new log lines")
	rootCmd.AddCommand(logsCmd)
}

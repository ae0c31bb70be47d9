package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/remote"
)

var remoteEnvFor string

var remoteCmd = &cobra.Command{
	Use:         "remote",
	Short:       "Discover shared datastores in the team AWS account",
	Annotations: map[string]string{skipStackAnnotation: "true"},
}

var remoteDBCmd = &cobra.Command{
	Use:         "db",
	Short:       "List RDS instances the local stack could point at",
	Annotations: map[string]string{skipStackAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := remote.NewDiscoverer(ctx)
		if err != nil {
			return err
		}

		dbs, err := d.Databases(ctx)
		if err != nil {
			return err
		}
		if len(dbs) == 0 {
			fmt.Println("No RDS instances found.")
			return nil
		}

		if remoteEnvFor != "" {
			for _, db := range dbs {
				if db.ID == remoteEnvFor {
					for _, line := range db.Overrides() {
						fmt.Println(line)
					}
					return nil
				}
			}
			return fmt.Errorf("no RDS instance named %s", remoteEnvFor)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tENGINE\tSTATUS\tENDPOINT")
		for _, db := range dbs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\n", db.ID, db.Engine, db.Status, db.Endpoint, db.Port)
		}
		w.Flush()

		fmt.Println("\nUse 'carbonstack remote db --env <id>' to print DATABASE_* overrides.")
		return nil
	},
}

var remoteCacheCmd = &cobra.Command{
	Use:         "cache",
	Short:       "List ElastiCache clusters",
	Annotations: map[string]string{skipStackAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		d, err := remote.NewDiscoverer(ctx)
		if err != nil {
			return err
		}

		caches, err := d.Caches(ctx)
		if err != nil {
			return err
		}
		if len(caches) == 0 {
			fmt.Println("No cache clusters found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tENGINE\tSTATUS\tENDPOINT")
		for _, c := range caches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s:%d\n", c.ID, c.Engine, c.Status, c.Endpoint, c.Port)
		}
		w.Flush()
		return nil
	},
}

func init() {
	remoteDBCmd.Flags().StringVar(&remoteEnvFor, "env", "", "print DATABASE_* override lines for the given instance")

	remoteCmd.AddCommand(remoteDBCmd)
	remoteCmd.AddCommand(remoteCacheCmd)
	rootCmd.AddCommand(remoteCmd)
}

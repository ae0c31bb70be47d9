package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bigscience-workshop/carbonstack/internal/config"
	"github.com/bigscience-workshop/carbonstack/internal/docker"
	"github.com/bigscience-workshop/carbonstack/internal/snapshot"
)

var (
	snapshotBucket  string
	snapshotService string
	snapshotKey     string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save or restore database snapshots through S3",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Dump the database and upload it to S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		containerName, user, dbName, err := databaseTarget()
		if err != nil {
			return err
		}

		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		store, err := snapshot.NewStore(ctx, snapshotBucket)
		if err != nil {
			return err
		}

		key, err := store.Save(ctx, mgr, containerName, user, dbName, cfg.Name)
		if err != nil {
			return err
		}
		fmt.Printf("Snapshot saved as %s.\n", key)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download a snapshot from S3 and load it into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		containerName, user, dbName, err := databaseTarget()
		if err != nil {
			return err
		}

		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		store, err := snapshot.NewStore(ctx, snapshotBucket)
		if err != nil {
			return err
		}

		if err := store.Restore(ctx, mgr, containerName, user, dbName, cfg.Name, snapshotKey); err != nil {
			return err
		}
		fmt.Println("Snapshot restored.")
		return nil
	},
}

// databaseTarget resolves the stack and pulls the container name and
// credentials of the database service the snapshot works against.
func databaseTarget() (containerName, user, dbName string, err error) {
	resolved, err := cfg.Resolve(config.OSLookup)
	if err != nil {
		return "", "", "", err
	}

	svc, ok := resolved.Services[snapshotService]
	if !ok {
		return "", "", "", fmt.Errorf("service %s is not declared in %s", snapshotService, stackFile)
	}

	user, uok := config.EnvValue(svc.Environment, "POSTGRES_USER")
	dbName, dok := config.EnvValue(svc.Environment, "POSTGRES_DB")
	if !uok || !dok {
		return "", "", "", fmt.Errorf("service %s does not look like a Postgres service (no POSTGRES_USER/POSTGRES_DB)", snapshotService)
	}

	return docker.ContainerName(resolved.Name, snapshotService, svc), user, dbName, nil
}

func init() {
	snapshotCmd.PersistentFlags().StringVar(&snapshotBucket, "bucket", "", "S3 bucket for snapshots")
	snapshotCmd.PersistentFlags().StringVar(&snapshotService, "service", "postgres", "database service to snapshot")
	snapshotCmd.MarkPersistentFlagRequired("bucket")

	snapshotRestoreCmd.Flags().StringVar(&snapshotKey, "key", "", "snapshot object key (defaults to the latest)")

	snapshotCmd.AddCommand(snapshotSaveCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	rootCmd.AddCommand(snapshotCmd)
}

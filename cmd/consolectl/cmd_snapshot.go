package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"agent-console/internal/snapshot"
	"agent-console/pkg/utils"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd, snapshotClearCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect or clear persisted console snapshots",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show <agent-id>",
	Short: "Print the persisted snapshot of an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openSnapshotStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		snap, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if snap == nil {
			fmt.Printf("No snapshot for agent %s.\n", args[0])
			return nil
		}

		fmt.Printf("Age: %s\n", snap.Age(time.Now()).Round(time.Second))
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

var snapshotClearCmd = &cobra.Command{
	Use:   "clear <agent-id>",
	Short: "Delete the persisted snapshot of an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeFn, err := openSnapshotStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.Clear(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
		fmt.Printf("Snapshot for agent %s cleared.\n", args[0])
		return nil
	},
}

func openSnapshotStore(cmd *cobra.Command) (*snapshot.RedisStore, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	rdb, err := utils.OpenRedis(cmd.Context(), utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return snapshot.NewRedisStore(rdb, cfg.Console.SnapshotTTL), func() { _ = rdb.Close() }, nil
}

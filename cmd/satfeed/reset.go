package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	resetConfirmed bool
	resetEchoDir   string
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every request record",
	Long:  "Removes all live request records from the store, and any echoed request files for the removed keys. Refuses to run without --yes.",
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the reset")
	resetCmd.Flags().StringVar(&resetEchoDir, "echo-dir", "", "Directory of echoed request files to clean up")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetConfirmed {
		return fmt.Errorf("refusing to reset requests without --yes")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	keys, err := st.DeleteAll(context.Background())
	if err != nil {
		return err
	}
	slog.Info("requests cleared", "removed", len(keys))

	if resetEchoDir != "" {
		for _, key := range keys {
			path := filepath.Join(resetEchoDir, key+".yaml")
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove echo file: %w", err)
			}
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reset complete: %d requests removed\n", len(keys))
	return nil
}

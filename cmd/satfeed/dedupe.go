package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Merge records sharing a signature despite differing keys",
	RunE:  runDedupe,
}

func runDedupe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.Dedupe(context.Background(), cfg.RequestDefaults.SlugPrecisionDecimals)
	if err != nil {
		return err
	}
	slog.Info("dedup complete", "removed", removed)
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d duplicate requests\n", removed)
	return nil
}

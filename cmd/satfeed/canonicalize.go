package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize",
	Short: "Rewrite stored selections against current bundle availability",
	Long:  "Applies the configured per-bundle availability to every stored record: stale ids are dropped, oversize selections capped, full selections collapsed, and colliding rewrites merged. Re-run until it reports zero rewrites to fully converge.",
	RunE:  runCanonicalize,
}

func runCanonicalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	updated, err := st.Canonicalize(context.Background(),
		cfg.AvailableIDsByBundle(), cfg.RequestDefaults.MaxSatellitesPerRequest)
	if err != nil {
		return err
	}
	slog.Info("canonicalization complete", "rewritten", updated)
	fmt.Fprintf(cmd.OutOrStdout(), "Rewrote %d requests\n", updated)
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kleinpanic/ICS-Satellite/internal/importer"
)

var (
	seedFile  string
	seedReset bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bulk-seed the request store from a seed file",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "Path to the YAML seed file")
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "Delete the existing store before seeding")
	seedCmd.MarkFlagRequired("file")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if seedReset {
		path := resolveDBPath(cfg)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove store: %w", err)
		}
		slog.Info("store reset before seeding", "path", path)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	result, err := importer.Seed(context.Background(), st, cfg, seedFile)
	if err != nil {
		return err
	}
	slog.Info("seed complete", "inserted", result.Inserted, "total", result.Total)
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d of %d requests into %s\n",
		result.Inserted, result.Total, resolveDBPath(cfg))
	return nil
}

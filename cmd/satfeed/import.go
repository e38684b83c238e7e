package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kleinpanic/ICS-Satellite/internal/importer"
)

var importDir string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import legacy per-request YAML files into the store",
	Long:  "One-time migration of legacy file-based request definitions. Files are imported in name order; a malformed file aborts the remaining import, but requests already applied stay applied.",
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDir, "dir", "config/requests",
		"Directory containing legacy request YAML files")
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	result, importErr := importer.ImportDir(context.Background(), st, cfg, importDir)
	applied := result.Applied()
	for _, rec := range applied {
		slog.Debug("request imported", "request_key", rec.RequestKey)
	}
	if importErr != nil {
		slog.Error("import aborted", "applied", len(applied), "error", importErr)
		return fmt.Errorf("import aborted after %d requests: %w", len(applied), importErr)
	}

	slog.Info("import complete", "applied", len(applied))
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d requests from %s\n", len(applied), importDir)
	return nil
}

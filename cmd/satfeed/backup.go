package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kleinpanic/ICS-Satellite/internal/backup"
)

var backupPrintURL bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Ship a copy of the request store to configured object storage",
	Long:  "Writes a clean snapshot of the request database and uploads it to the configured S3-compatible bucket. Requires backup_storage to be configured.",
	RunE:  runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupPrintURL, "url", false,
		"Print a pre-signed download URL for the uploaded copy")
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.BackupStorage.Bucket == "" {
		return backup.ErrNotConfigured
	}

	uploader, err := backup.NewUploader(cfg.BackupStorage)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	tmpDir, err := os.MkdirTemp("", "satfeed-backup-*")
	if err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, "requests.sqlite")
	if err := st.SnapshotTo(ctx, snapshotPath); err != nil {
		return err
	}

	key, err := uploader.Upload(ctx, snapshotPath)
	if err != nil {
		return err
	}
	slog.Info("backup uploaded", "bucket", cfg.BackupStorage.Bucket, "key", key)
	fmt.Fprintf(cmd.OutOrStdout(), "Uploaded request store to %s/%s\n", cfg.BackupStorage.Bucket, key)

	if backupPrintURL {
		url, expiry, err := uploader.PresignedURL(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Download (expires %s): %s\n", expiry.UTC().Format("2006-01-02T15:04:05Z"), url)
	}
	return nil
}

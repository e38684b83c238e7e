package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kleinpanic/ICS-Satellite/internal/config"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

var (
	persistLat         float64
	persistLon         float64
	persistBundle      string
	persistSlug        string
	persistName        string
	persistIDs         []int
	persistRequestedBy string
	persistRequestedAt string
	persistElevation   float64
	persistEchoDir     string
)

var persistCmd = &cobra.Command{
	Use:   "persist",
	Short: "Persist a single incoming feed request",
	Long:  "Validate one incoming feed request and upsert it into the request store. Repeated submissions of the same logical request merge into one record.",
	RunE:  runPersist,
}

func init() {
	persistCmd.Flags().Float64Var(&persistLat, "lat", 0, "Observer latitude in decimal degrees")
	persistCmd.Flags().Float64Var(&persistLon, "lon", 0, "Observer longitude in decimal degrees")
	persistCmd.Flags().StringVar(&persistBundle, "bundle", "", "Bundle slug the request refers to")
	persistCmd.Flags().StringVar(&persistSlug, "slug", "", "Location slug override (derived from coordinates when empty)")
	persistCmd.Flags().StringVar(&persistName, "name", "", "Display name for the location")
	persistCmd.Flags().IntSliceVar(&persistIDs, "ids", nil, "Selected NORAD ids (comma separated)")
	persistCmd.Flags().StringVar(&persistRequestedBy, "requested-by", "", "Requester attribution")
	persistCmd.Flags().StringVar(&persistRequestedAt, "requested-at", "", "Request timestamp, stored verbatim")
	persistCmd.Flags().Float64Var(&persistElevation, "elevation", 0, "Observer elevation in meters")
	persistCmd.Flags().StringVar(&persistEchoDir, "echo-dir", "", "Directory to write the persisted record back out as <request_key>.yaml")
	persistCmd.MarkFlagRequired("lat")
	persistCmd.MarkFlagRequired("lon")
	persistCmd.MarkFlagRequired("bundle")
}

func runPersist(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bundle, ok := cfg.BundleBySlug(persistBundle)
	if !ok {
		return fmt.Errorf("unknown bundle slug: %s", persistBundle)
	}
	if bundle.ResolvedKind() == config.KindPlanetary && len(persistIDs) > 0 {
		return fmt.Errorf("planetary bundle %s cannot include selected NORAD ids", persistBundle)
	}

	var elevation *float64
	if cmd.Flags().Changed("elevation") {
		elevation = &persistElevation
	}
	req := types.FeedRequest{
		Slug:             persistSlug,
		Name:             persistName,
		Lat:              persistLat,
		Lon:              persistLon,
		ElevationM:       elevation,
		BundleSlug:       persistBundle,
		SelectedNoradIDs: persistIDs,
		RequestedBy:      persistRequestedBy,
		RequestedAt:      persistRequestedAt,
	}
	if err := req.Validate(cfg.BundleSlugs()); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	rec, err := st.Upsert(ctx, req, cfg.RequestDefaults.SlugPrecisionDecimals)
	if err != nil {
		return fmt.Errorf("persist request: %w", err)
	}
	slog.Info("request persisted",
		"request_key", rec.RequestKey,
		"bundle", rec.BundleSlug,
		"first_seen", rec.FirstSeen,
		"last_seen", rec.LastSeen)

	if persistEchoDir != "" {
		path, err := writeRequestEcho(persistEchoDir, rec)
		if err != nil {
			return err
		}
		slog.Info("request echoed", "path", path)
	}

	fmt.Fprintln(cmd.OutOrStdout(), rec.RequestKey)
	return nil
}

// writeRequestEcho writes the canonical record back out as
// <request_key>.yaml, the legacy file form consumed by older tooling.
func writeRequestEcho(dir string, rec *types.RequestRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create echo directory: %w", err)
	}
	data, err := yaml.Marshal(rec.FeedRequest())
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	path := filepath.Join(dir, rec.RequestKey+".yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write echo file: %w", err)
	}
	return path, nil
}

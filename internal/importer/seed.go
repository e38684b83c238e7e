package importer

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kleinpanic/ICS-Satellite/internal/config"
	"github.com/kleinpanic/ICS-Satellite/internal/selection"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/store"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

// defaultSeedRequester attributes seeded records that carry no requester.
const defaultSeedRequester = "seed"

// SeedRequest is one entry of a bulk seed file.
type SeedRequest struct {
	Name             string   `yaml:"name,omitempty"`
	Slug             string   `yaml:"slug,omitempty"`
	Lat              float64  `yaml:"lat"`
	Lon              float64  `yaml:"lon"`
	ElevationM       *float64 `yaml:"elevation_m,omitempty"`
	BundleSlug       string   `yaml:"bundle_slug"`
	SelectedNoradIDs []int    `yaml:"selected_norad_ids,omitempty"`
	RequestedBy      string   `yaml:"requested_by,omitempty"`
	RequestedAt      string   `yaml:"requested_at,omitempty"`
}

// SeedResult reports how many seed entries were upserted.
type SeedResult struct {
	Inserted int
	Total    int
}

// seedFile accepts either a bare list of requests or a document with a
// top-level "requests" key.
type seedFile struct {
	Requests []SeedRequest `yaml:"requests"`
}

// LoadSeedFile parses a seed file. An empty file yields no requests.
func LoadSeedFile(path string) ([]SeedRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var list []SeedRequest
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return doc.Requests, nil
}

// Seed upserts every seed entry through the store, precomputing the
// canonical selection against the bundle's configured availability:
// missing selections get the deterministic default, oversize selections
// are capped, and full-set selections collapse to the implicit form.
func Seed(ctx context.Context, st *store.RequestStore, cfg *config.Config, path string) (*SeedResult, error) {
	seeds, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	result := &SeedResult{Total: len(seeds)}

	precision := cfg.RequestDefaults.SlugPrecisionDecimals
	maxPerRequest := cfg.RequestDefaults.MaxSatellitesPerRequest
	availableByBundle := cfg.AvailableIDsByBundle()

	for _, seed := range seeds {
		bundle, ok := cfg.BundleBySlug(seed.BundleSlug)
		if !ok {
			return result, fmt.Errorf("seed request references unknown bundle: %s", seed.BundleSlug)
		}

		locationSlug := seed.Slug
		if locationSlug == "" {
			locationSlug = slug.LocationSlug(seed.Lat, seed.Lon, precision)
		}

		var canonical []int
		if bundle.ResolvedKind() == config.KindPlanetary {
			if len(seed.SelectedNoradIDs) > 0 {
				return result, fmt.Errorf("planetary bundle %s cannot include selected NORAD ids", seed.BundleSlug)
			}
			canonical = []int{}
		} else {
			available := availableByBundle[seed.BundleSlug]
			selected := seed.SelectedNoradIDs
			if len(selected) == 0 {
				selected = selection.Default(available, maxPerRequest)
			}
			selected = selection.Normalize(selected)
			if len(selected) > maxPerRequest {
				selected = selected[:maxPerRequest]
			}
			canonical = selection.Canonicalize(selected, available)
		}

		requestedBy := seed.RequestedBy
		if requestedBy == "" {
			requestedBy = defaultSeedRequester
		}

		req := types.FeedRequest{
			Slug:             locationSlug,
			Name:             seed.Name,
			Lat:              seed.Lat,
			Lon:              seed.Lon,
			ElevationM:       seed.ElevationM,
			BundleSlug:       seed.BundleSlug,
			SelectedNoradIDs: canonical,
			RequestedBy:      requestedBy,
			RequestedAt:      seed.RequestedAt,
		}
		if _, err := st.Upsert(ctx, req, precision); err != nil {
			return result, err
		}
		result.Inserted++
	}
	return result, nil
}

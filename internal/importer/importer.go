// Package importer migrates externally-defined feed requests into the
// request store: legacy per-request YAML files and bulk seed files. Every
// definition goes through the store's upsert engine, so imported requests
// dedupe against live intake exactly like any other channel.
package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kleinpanic/ICS-Satellite/internal/config"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/store"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

// ItemOutcome records the result of importing one definition file.
type ItemOutcome struct {
	Path   string
	Record *types.RequestRecord
	Err    error
}

// Result collects per-item outcomes of an import run. When Aborted is
// true the final outcome carries the error that stopped the run; earlier
// upserts are not rolled back, so a partial import is a usable state.
type Result struct {
	Outcomes []ItemOutcome
	Aborted  bool
}

// Applied returns the records successfully upserted, in import order.
func (r *Result) Applied() []types.RequestRecord {
	var records []types.RequestRecord
	for _, o := range r.Outcomes {
		if o.Err == nil && o.Record != nil {
			records = append(records, *o.Record)
		}
	}
	return records
}

// ImportDir migrates legacy YAML request definitions from dir into the
// store, in name-sorted order. A malformed definition aborts the remaining
// import (fail-fast); the returned Result still reports what was applied.
// A missing directory is not an error.
func ImportDir(ctx context.Context, st *store.RequestStore, cfg *config.Config, dir string) (*Result, error) {
	result := &Result{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("read requests directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	precision := cfg.RequestDefaults.SlugPrecisionDecimals
	knownBundles := cfg.BundleSlugs()
	for _, path := range paths {
		req, skip, err := loadDefinition(path, precision)
		if err == nil && !skip {
			err = validateDefinition(*req, knownBundles)
		}
		if err != nil {
			result.Outcomes = append(result.Outcomes, ItemOutcome{Path: path, Err: err})
			result.Aborted = true
			return result, err
		}
		if skip {
			continue
		}

		rec, err := st.Upsert(ctx, *req, precision)
		if err != nil {
			result.Outcomes = append(result.Outcomes, ItemOutcome{Path: path, Err: err})
			result.Aborted = true
			return result, err
		}
		result.Outcomes = append(result.Outcomes, ItemOutcome{Path: path, Record: rec})
	}
	return result, nil
}

// loadDefinition parses one legacy request file. Empty files are skipped.
// A definition without a slug gets the coordinate-derived one.
func loadDefinition(path string, precision int) (*types.FeedRequest, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read request file %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, true, nil
	}

	var req types.FeedRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, false, fmt.Errorf("parse request file %s: %w", path, err)
	}
	if req.Slug == "" {
		req.Slug = slug.LocationSlug(req.Lat, req.Lon, precision)
	}
	return &req, false, nil
}

// validateDefinition rejects definitions that reference unknown bundles or
// embed a bundle in the slug that contradicts bundle_slug.
func validateDefinition(req types.FeedRequest, knownBundles []string) error {
	if err := req.Validate(knownBundles); err != nil {
		return err
	}
	if parts := strings.Split(req.Slug, "--"); len(parts) >= 2 && parts[1] != req.BundleSlug {
		return fmt.Errorf("request slug %q embeds bundle %q, want %q", req.Slug, parts[1], req.BundleSlug)
	}
	return nil
}

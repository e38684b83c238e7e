package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

// Upsert resolves an incoming request against the store and returns the
// canonical record. Idempotent: a request matching an existing record by
// signature or by exact key merges into it (last_seen advances,
// attribution fills first-writer-wins); a novel request inserts one row.
// All steps, including the location_key backfill, run in one transaction.
func (s *RequestStore) Upsert(ctx context.Context, req types.FeedRequest, precision int) (*types.RequestRecord, error) {
	locationSlug := req.ResolvedLocationSlug(precision)
	locationKey := slug.LocationKey(req.Lat, req.Lon, precision)
	selected := selection.Normalize(req.SelectedNoradIDs)
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Older rows may predate the location_key column; backfill before the
	// signature lookup so grouping by rounded coordinates sees every row.
	if _, err := ensureLocationKeys(ctx, tx, precision); err != nil {
		return nil, err
	}

	finalKey := ""
	existing, err := getBySignature(ctx, tx, locationKey, req.BundleSlug, selected)
	switch {
	case err == nil:
		// Signature match: the logical request already exists under a
		// possibly different historical key. Keep its key and selection.
		if err := mergeInto(ctx, tx, existing.RequestKey, req, locationKey, now); err != nil {
			return nil, err
		}
		finalKey = existing.RequestKey

	case errors.Is(err, ErrNotFound):
		key := slug.RequestKey(locationSlug, req.BundleSlug, selected)
		_, err := getByKey(ctx, tx, key)
		switch {
		case err == nil:
			if err := mergeInto(ctx, tx, key, req, locationKey, now); err != nil {
				return nil, err
			}
		case errors.Is(err, ErrNotFound):
			nowStr := formatTime(now)
			_, err := tx.ExecContext(ctx, `
				INSERT INTO requests (
					request_key, location_slug, location_key, bundle_slug, lat, lon,
					elevation_m, name, selected_norad_ids, requested_by, requested_at,
					first_seen, last_seen
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`,
				key,
				locationSlug,
				locationKey,
				req.BundleSlug,
				req.Lat,
				req.Lon,
				req.ElevationM,
				nullable(req.Name),
				selection.Payload(selected),
				nullable(req.RequestedBy),
				nullable(req.RequestedAt),
				nowStr,
				nowStr,
			)
			if err != nil {
				return nil, fmt.Errorf("insert request: %w", err)
			}
		default:
			return nil, err
		}
		finalKey = key

	default:
		return nil, err
	}

	// Post-condition: the record we just wrote must be readable.
	rec, err := getByKey(ctx, tx, finalKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: request %s not found after upsert", ErrConsistency, finalKey)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return rec, nil
}

// mergeInto applies the merge semantics for an upsert that matched an
// existing record: last_seen advances, name/requester/requested_at fill
// only if currently empty, location_key fills if missing. first_seen,
// coordinates, and the stored selection never change on this path.
func mergeInto(ctx context.Context, q dbtx, requestKey string, req types.FeedRequest, locationKey string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE requests
		SET last_seen = ?,
		    name = COALESCE(name, ?),
		    requested_by = COALESCE(requested_by, ?),
		    requested_at = COALESCE(requested_at, ?),
		    location_key = COALESCE(location_key, ?)
		WHERE request_key = ?
	`,
		formatTime(now),
		nullable(req.Name),
		nullable(req.RequestedBy),
		nullable(req.RequestedAt),
		locationKey,
		requestKey,
	)
	if err != nil {
		return fmt.Errorf("merge request: %w", err)
	}
	return nil
}

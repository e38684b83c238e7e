package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

// Canonicalize rewrites stored selections against authoritative per-bundle
// availability: stale ids are dropped, empty selections resolve to the
// deterministic default, oversize selections are capped, and a selection
// equal to the full available set collapses to the implicit "all" form.
// Key rewrites that collide with an existing record merge into it.
//
// Returns the number of records rewritten. Idempotent for fixed
// availability; a rewrite can create a new collision chain, so callers may
// re-run until it reports zero.
func (s *RequestStore) Canonicalize(ctx context.Context, availability map[string][]int, maxPerRequest int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	records, err := listRequests(ctx, tx, `ORDER BY location_slug, bundle_slug, request_key`)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range records {
		available, ok := availability[rec.BundleSlug]
		if !ok {
			// Unknown or non-applicable bundle: leave the record alone.
			continue
		}

		selected := selection.Normalize(rec.SelectedNoradIDs)
		if len(selected) == 0 {
			selected = selection.Default(available, maxPerRequest)
		}
		if len(selected) > maxPerRequest {
			selected = selected[:maxPerRequest]
		}
		canonical := selection.Canonicalize(selected, available)
		if selection.Equal(canonical, rec.SelectedNoradIDs) {
			continue
		}

		newKey := slug.RequestKey(rec.LocationSlug, rec.BundleSlug, canonical)
		if newKey == rec.RequestKey {
			// Identity unchanged; rewrite the stored selection in place.
			if _, err := tx.ExecContext(ctx,
				`UPDATE requests SET selected_norad_ids = ? WHERE request_key = ?`,
				selection.Payload(canonical), rec.RequestKey,
			); err != nil {
				return 0, fmt.Errorf("rewrite selection: %w", err)
			}
			updated++
			continue
		}

		existing, err := getByKey(ctx, tx, newKey)
		switch {
		case err == nil:
			// Another record already owns the canonical key: merge this
			// record's history into it and drop this row.
			if err := mergeRecords(ctx, tx, *existing, rec); err != nil {
				return 0, err
			}
		case errors.Is(err, ErrNotFound):
			if _, err := tx.ExecContext(ctx,
				`UPDATE requests SET request_key = ?, selected_norad_ids = ? WHERE request_key = ?`,
				newKey, selection.Payload(canonical), rec.RequestKey,
			); err != nil {
				return 0, fmt.Errorf("rewrite request key: %w", err)
			}
		default:
			return 0, err
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return updated, nil
}

// Dedupe merges records that share a signature despite differing
// historical keys. Records are processed in first_seen order; the earliest
// record per signature survives, every later one is merged into it and
// deleted. Returns the number of records removed.
func (s *RequestStore) Dedupe(ctx context.Context, precision int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := ensureLocationKeys(ctx, tx, precision); err != nil {
		return 0, err
	}

	records, err := listRequests(ctx, tx, `ORDER BY first_seen, request_key`)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]types.RequestRecord)
	removed := 0
	for _, rec := range records {
		sig := rec.Signature()
		keeper, dup := seen[sig]
		if !dup {
			seen[sig] = rec
			continue
		}
		if err := mergeRecords(ctx, tx, keeper, rec); err != nil {
			return 0, err
		}
		// Track the merged state so later duplicates compare against it.
		keeper.FirstSeen = minTime(keeper.FirstSeen, rec.FirstSeen)
		keeper.LastSeen = maxTime(keeper.LastSeen, rec.LastSeen)
		keeper.Name = coalesce(keeper.Name, rec.Name)
		keeper.RequestedBy = coalesce(keeper.RequestedBy, rec.RequestedBy)
		keeper.RequestedAt = coalesce(keeper.RequestedAt, rec.RequestedAt)
		seen[sig] = keeper
		removed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return removed, nil
}

// mergeRecords folds source's history into target (first_seen = min,
// last_seen = max, attribution first-writer-wins) and deletes source.
func mergeRecords(ctx context.Context, q dbtx, target, source types.RequestRecord) error {
	_, err := q.ExecContext(ctx, `
		UPDATE requests
		SET name = ?, requested_by = ?, requested_at = ?, first_seen = ?, last_seen = ?
		WHERE request_key = ?
	`,
		nullable(coalesce(target.Name, source.Name)),
		nullable(coalesce(target.RequestedBy, source.RequestedBy)),
		nullable(coalesce(target.RequestedAt, source.RequestedAt)),
		formatTime(minTime(target.FirstSeen, source.FirstSeen)),
		formatTime(maxTime(target.LastSeen, source.LastSeen)),
		target.RequestKey,
	)
	if err != nil {
		return fmt.Errorf("merge records: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM requests WHERE request_key = ?`, source.RequestKey,
	); err != nil {
		return fmt.Errorf("delete merged record: %w", err)
	}
	return nil
}

// DeleteAll removes every live record and returns their request keys, in
// read-view order. Supports the external reset operation.
func (s *RequestStore) DeleteAll(ctx context.Context) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	records, err := listRequests(ctx, tx, `ORDER BY location_slug, bundle_slug, request_key`)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.RequestKey
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM requests`); err != nil {
		return nil, fmt.Errorf("delete requests: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return keys, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

const requestColumns = `request_key, location_slug, location_key, bundle_slug, lat, lon,
       elevation_m, name, selected_norad_ids, requested_by, requested_at, first_seen, last_seen`

// scanRequestRecord scans a row into a RequestRecord, handling NULL columns
// and the JSON selection payload.
func scanRequestRecord(scanner interface{ Scan(...any) error }) (*types.RequestRecord, error) {
	var rec types.RequestRecord
	var locationKey, name, payload, requestedBy, requestedAt sql.NullString
	var elevation sql.NullFloat64
	var firstSeen, lastSeen string

	err := scanner.Scan(
		&rec.RequestKey,
		&rec.LocationSlug,
		&locationKey,
		&rec.BundleSlug,
		&rec.Lat,
		&rec.Lon,
		&elevation,
		&name,
		&payload,
		&requestedBy,
		&requestedAt,
		&firstSeen,
		&lastSeen,
	)
	if err != nil {
		return nil, err
	}

	rec.LocationKey = locationKey.String
	rec.Name = name.String
	rec.RequestedBy = requestedBy.String
	rec.RequestedAt = requestedAt.String
	if elevation.Valid {
		v := elevation.Float64
		rec.ElevationM = &v
	}

	rec.SelectedNoradIDs = []int{}
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &rec.SelectedNoradIDs); err != nil {
			return nil, fmt.Errorf("parse selection payload: %w", err)
		}
	}

	rec.FirstSeen = parseTime(firstSeen)
	rec.LastSeen = parseTime(lastSeen)
	return &rec, nil
}

// nullable maps the empty string to SQL NULL at the storage edge.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetByKey retrieves a request record by its canonical request key.
func (s *RequestStore) GetByKey(ctx context.Context, requestKey string) (*types.RequestRecord, error) {
	return getByKey(ctx, s.db, requestKey)
}

func getByKey(ctx context.Context, q dbtx, requestKey string) (*types.RequestRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE request_key = ?
	`, requestKey)

	rec, err := scanRequestRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return rec, nil
}

// GetBySignature retrieves the record matching (location_key, bundle_slug,
// normalized selection), the identity independent of key spelling.
func (s *RequestStore) GetBySignature(ctx context.Context, locationKey, bundleSlug string, selectedIDs []int) (*types.RequestRecord, error) {
	return getBySignature(ctx, s.db, locationKey, bundleSlug, selectedIDs)
}

func getBySignature(ctx context.Context, q dbtx, locationKey, bundleSlug string, selectedIDs []int) (*types.RequestRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		WHERE location_key = ? AND bundle_slug = ? AND selected_norad_ids = ?
	`, locationKey, bundleSlug, selection.Payload(selectedIDs))

	rec, err := scanRequestRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return rec, nil
}

// List returns all live records in stable read-view order: location_slug,
// bundle_slug, request_key. This is the view the feed builder consumes.
func (s *RequestStore) List(ctx context.Context) ([]types.RequestRecord, error) {
	return listRequests(ctx, s.db, `ORDER BY location_slug, bundle_slug, request_key`)
}

func listRequests(ctx context.Context, q dbtx, orderBy string) ([]types.RequestRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM requests
		`+orderBy)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var records []types.RequestRecord
	for rows.Next() {
		rec, err := scanRequestRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// LoadFeedRequests converts every live record into the request shape
// consumed by the feed-building collaborator, in read-view order.
func (s *RequestStore) LoadFeedRequests(ctx context.Context) ([]types.FeedRequest, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	requests := make([]types.FeedRequest, len(records))
	for i, rec := range records {
		requests[i] = rec.FeedRequest()
	}
	return requests, nil
}

// EnsureLocationKeys backfills location_key for rows created before the
// column existed. Returns the number of rows backfilled.
func (s *RequestStore) EnsureLocationKeys(ctx context.Context, precision int) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := ensureLocationKeys(ctx, tx, precision)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return n, nil
}

func ensureLocationKeys(ctx context.Context, q dbtx, precision int) (int, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT request_key, lat, lon
		FROM requests
		WHERE location_key IS NULL OR location_key = ''
	`)
	if err != nil {
		return 0, fmt.Errorf("query missing location keys: %w", err)
	}
	defer rows.Close()

	type pending struct {
		requestKey string
		lat, lon   float64
	}
	var missing []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.requestKey, &p.lat, &p.lon); err != nil {
			return 0, fmt.Errorf("scan row: %w", err)
		}
		missing = append(missing, p)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate rows: %w", err)
	}

	for _, p := range missing {
		locKey := slug.LocationKey(p.lat, p.lon, precision)
		if _, err := q.ExecContext(ctx,
			`UPDATE requests SET location_key = ? WHERE request_key = ?`,
			locKey, p.requestKey,
		); err != nil {
			return 0, fmt.Errorf("backfill location key: %w", err)
		}
	}
	return len(missing), nil
}

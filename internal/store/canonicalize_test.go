package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kleinpanic/ICS-Satellite/internal/slug"
	"github.com/kleinpanic/ICS-Satellite/internal/types"
)

func TestCanonicalize_CollapsesFullSelection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	req := types.FeedRequest{
		Slug:             "lat47p6062_lonm122p3321",
		Lat:              47.6062,
		Lon:              -122.3321,
		BundleSlug:       "iss",
		SelectedNoradIDs: []int{25544},
	}
	rec, err := st.Upsert(ctx, req, 4)
	if err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"iss": {25544}}, 12)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}

	// Selecting everything available collapses to the implicit form: no
	// selection suffix on the key, empty stored selection.
	if _, err := st.GetByKey(ctx, rec.RequestKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("old key should be gone, got %v", err)
	}
	collapsed, err := st.GetByKey(ctx, "lat47p6062_lonm122p3321--iss")
	if err != nil {
		t.Fatal(err)
	}
	if len(collapsed.SelectedNoradIDs) != 0 {
		t.Errorf("selection = %v, want empty", collapsed.SelectedNoradIDs)
	}
}

func TestCanonicalize_AppliesDefaultSelection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	req := types.FeedRequest{
		Slug:       "lat47p6062_lonm122p3321",
		Lat:        47.6062,
		Lon:        -122.3321,
		BundleSlug: "stations",
	}
	if _, err := st.Upsert(ctx, req, 4); err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"stations": {40, 10, 30, 20}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}

	records, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !reflect.DeepEqual(records[0].SelectedNoradIDs, []int{10, 20}) {
		t.Errorf("selection = %v, want [10 20]", records[0].SelectedNoradIDs)
	}
	wantKey := slug.RequestKey("lat47p6062_lonm122p3321", "stations", []int{10, 20})
	if records[0].RequestKey != wantKey {
		t.Errorf("request key = %q, want %q", records[0].RequestKey, wantKey)
	}
}

func TestCanonicalize_DropsUnavailableIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	req := types.FeedRequest{
		Slug:             "lat47p6062_lonm122p3321",
		Lat:              47.6062,
		Lon:              -122.3321,
		BundleSlug:       "stations",
		SelectedNoradIDs: []int{1, 4},
	}
	before, err := st.Upsert(ctx, req, 4)
	if err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"stations": {1, 2, 3}}, 12)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}

	after, err := st.GetByKey(ctx, slug.RequestKey("lat47p6062_lonm122p3321", "stations", []int{1}))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(after.SelectedNoradIDs, []int{1}) {
		t.Errorf("selection = %v, want [1]", after.SelectedNoradIDs)
	}
	if after.RequestKey == before.RequestKey {
		t.Error("dropping an id changes the selection hash, so the key must change")
	}
	if !after.FirstSeen.Equal(before.FirstSeen) {
		t.Error("rewriting the key must preserve provenance")
	}
}

func TestCanonicalize_CapsOversizeSelection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	req := types.FeedRequest{
		Slug:             "lat47p6062_lonm122p3321",
		Lat:              47.6062,
		Lon:              -122.3321,
		BundleSlug:       "stations",
		SelectedNoradIDs: []int{5, 1, 3, 2},
	}
	if _, err := st.Upsert(ctx, req, 4); err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"stations": {5, 1, 3, 2}}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}

	records, err := st.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if !reflect.DeepEqual(records[0].SelectedNoradIDs, []int{1, 2}) {
		t.Errorf("selection = %v, want [1 2]", records[0].SelectedNoradIDs)
	}
}

func TestCanonicalize_SkipsUnknownBundles(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	req := types.FeedRequest{
		Slug:             "lat47p6062_lonm122p3321",
		Lat:              47.6062,
		Lon:              -122.3321,
		BundleSlug:       "planets",
		SelectedNoradIDs: []int{99},
	}
	rec, err := st.Upsert(ctx, req, 4)
	if err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"stations": {1, 2}}, 12)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rewritten = %d, want 0", n)
	}
	same, err := st.GetByKey(ctx, rec.RequestKey)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(same.SelectedNoradIDs, []int{99}) {
		t.Errorf("selection = %v, want untouched [99]", same.SelectedNoradIDs)
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	requests := []types.FeedRequest{
		{Slug: "a", Lat: 1, Lon: 2, BundleSlug: "stations", SelectedNoradIDs: []int{1, 4}},
		{Slug: "b", Lat: 3, Lon: 4, BundleSlug: "stations"},
		{Slug: "c", Lat: 5, Lon: 6, BundleSlug: "iss", SelectedNoradIDs: []int{25544}},
	}
	for _, req := range requests {
		if _, err := st.Upsert(ctx, req, 4); err != nil {
			t.Fatal(err)
		}
	}
	availability := map[string][]int{
		"stations": {1, 2, 3},
		"iss":      {25544},
	}

	if _, err := st.Canonicalize(ctx, availability, 2); err != nil {
		t.Fatal(err)
	}
	n, err := st.Canonicalize(ctx, availability, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second pass rewrote %d records, want 0", n)
	}
}

func TestCanonicalize_MergesKeyCollision(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Implicit-selection record, established first, carries attribution.
	implicit := types.FeedRequest{
		Slug:        "lat47p6062_lonm122p3321",
		Lat:         47.6062,
		Lon:         -122.3321,
		BundleSlug:  "iss",
		RequestedBy: "alice",
	}
	keeper, err := st.Upsert(ctx, implicit, 4)
	if err != nil {
		t.Fatal(err)
	}

	// Explicit full selection canonicalizes to the same key.
	explicit := implicit
	explicit.SelectedNoradIDs = []int{25544}
	explicit.RequestedBy = "bob"
	if _, err := st.Upsert(ctx, explicit, 4); err != nil {
		t.Fatal(err)
	}

	n, err := st.Canonicalize(ctx, map[string][]int{"iss": {25544}}, 12)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}

	count, _ := st.Count(ctx)
	if count != 1 {
		t.Fatalf("expected the collision to merge, got %d records", count)
	}
	merged, err := st.GetByKey(ctx, keeper.RequestKey)
	if err != nil {
		t.Fatal(err)
	}
	if merged.RequestedBy != "alice" {
		t.Errorf("requested_by = %q, want the keeper's attribution", merged.RequestedBy)
	}
	if merged.FirstSeen.After(keeper.FirstSeen) {
		t.Error("merge must keep the earliest first_seen")
	}
}

func TestDedupe_MergesSignatureTwins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	early := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	late := early.Add(48 * time.Hour)
	locKey := slug.LocationKey(37.2296, -80.4139, 4)

	insertLegacyRow(t, st, legacyRow{
		requestKey:   "custom-slug--stations",
		locationSlug: "custom-slug",
		bundleSlug:   "stations",
		lat:          37.2296,
		lon:          -80.4139,
		payload:      "[]",
		firstSeen:    early,
		lastSeen:     early,
	})
	insertLegacyRow(t, st, legacyRow{
		requestKey:   "lat37p2296_lonm80p4139--stations",
		locationSlug: "lat37p2296_lonm80p4139",
		bundleSlug:   "stations",
		lat:          37.2296,
		lon:          -80.4139,
		payload:      "[]",
		requestedBy:  "late-writer",
		firstSeen:    late,
		lastSeen:     late,
	})

	removed, err := st.Dedupe(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	count, _ := st.Count(ctx)
	if count != 1 {
		t.Fatalf("expected 1 record after dedupe, got %d", count)
	}

	// The earliest record survives, folding in the twin's history.
	rec, err := st.GetBySignature(ctx, locKey, "stations", nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec.RequestKey != "custom-slug--stations" {
		t.Errorf("keeper = %q, want the earliest record", rec.RequestKey)
	}
	if !rec.FirstSeen.Equal(early) {
		t.Errorf("first_seen = %v, want %v", rec.FirstSeen, early)
	}
	if !rec.LastSeen.Equal(late) {
		t.Errorf("last_seen = %v, want %v", rec.LastSeen, late)
	}
	if rec.RequestedBy != "late-writer" {
		t.Errorf("requested_by = %q, want backfilled attribution", rec.RequestedBy)
	}
}

func TestDedupe_LeavesDistinctSignaturesAlone(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	requests := []types.FeedRequest{
		{Slug: "a", Lat: 1, Lon: 2, BundleSlug: "stations"},
		{Slug: "b", Lat: 3, Lon: 4, BundleSlug: "stations"},
		{Slug: "a", Lat: 1, Lon: 2, BundleSlug: "stations", SelectedNoradIDs: []int{7}},
	}
	for _, req := range requests {
		if _, err := st.Upsert(ctx, req, 4); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := st.Dedupe(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	count, _ := st.Count(ctx)
	if count != 3 {
		t.Errorf("expected 3 records, got %d", count)
	}
}

func TestDeleteAll(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	requests := []types.FeedRequest{
		{Slug: "b", Lat: 3, Lon: 4, BundleSlug: "stations"},
		{Slug: "a", Lat: 1, Lon: 2, BundleSlug: "stations"},
	}
	for _, req := range requests {
		if _, err := st.Upsert(ctx, req, 4); err != nil {
			t.Fatal(err)
		}
	}

	keys, err := st.DeleteAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a--stations", "b--stations"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	count, _ := st.Count(ctx)
	if count != 0 {
		t.Errorf("expected empty store, got %d records", count)
	}
}

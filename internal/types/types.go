// Package types defines the request records persisted by the store and the
// incoming request shape accepted from the intake paths (live persist,
// legacy YAML files, bulk seeding).
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
	"github.com/kleinpanic/ICS-Satellite/internal/slug"
)

// FeedRequest is an incoming feed request: an observer location, a content
// bundle, and an optional satellite subset. Attribution fields are optional
// and filled first-writer-wins on merge.
type FeedRequest struct {
	Slug             string   `yaml:"slug,omitempty"`
	Name             string   `yaml:"name,omitempty"`
	Lat              float64  `yaml:"lat"`
	Lon              float64  `yaml:"lon"`
	ElevationM       *float64 `yaml:"elevation_m,omitempty"`
	BundleSlug       string   `yaml:"bundle_slug"`
	SelectedNoradIDs []int    `yaml:"selected_norad_ids,omitempty"`
	RequestedBy      string   `yaml:"requested_by,omitempty"`
	RequestedAt      string   `yaml:"requested_at,omitempty"`
}

// ResolvedLocationSlug returns the caller-supplied slug when present,
// reduced to its location part if it embeds a bundle suffix, otherwise the
// coordinate-derived slug at the given precision.
func (r FeedRequest) ResolvedLocationSlug(precision int) string {
	s := r.Slug
	if s == "" {
		return slug.LocationSlug(r.Lat, r.Lon, precision)
	}
	if !strings.Contains(s, "--") {
		return s
	}
	return strings.SplitN(s, "--", 2)[0]
}

// RequestRecord is a durable, deduplicated request row. RequestKey is the
// canonical identity; LocationKey is the coordinate-derived grouping key
// used for signature lookups. FirstSeen/LastSeen bracket its provenance.
type RequestRecord struct {
	RequestKey       string    `json:"request_key"`
	LocationSlug     string    `json:"location_slug"`
	LocationKey      string    `json:"location_key"`
	BundleSlug       string    `json:"bundle_slug"`
	Lat              float64   `json:"lat"`
	Lon              float64   `json:"lon"`
	ElevationM       *float64  `json:"elevation_m,omitempty"`
	Name             string    `json:"name,omitempty"`
	SelectedNoradIDs []int     `json:"selected_norad_ids"`
	RequestedBy      string    `json:"requested_by,omitempty"`
	RequestedAt      string    `json:"requested_at,omitempty"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
}

// Signature identifies the logical request independent of how its key was
// historically spelled: (location_key, bundle_slug, normalized selection).
func (r RequestRecord) Signature() string {
	return fmt.Sprintf("%s|%s|%s", r.LocationKey, r.BundleSlug, selection.Payload(r.SelectedNoradIDs))
}

// FeedRequest converts a stored record back into the request shape consumed
// by the feed-building collaborator.
func (r RequestRecord) FeedRequest() FeedRequest {
	return FeedRequest{
		Slug:             r.LocationSlug,
		Name:             r.Name,
		Lat:              r.Lat,
		Lon:              r.Lon,
		ElevationM:       r.ElevationM,
		BundleSlug:       r.BundleSlug,
		SelectedNoradIDs: selection.Normalize(r.SelectedNoradIDs),
		RequestedBy:      r.RequestedBy,
		RequestedAt:      r.RequestedAt,
	}
}

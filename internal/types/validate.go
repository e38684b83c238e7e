package types

import (
	"github.com/kleinpanic/ICS-Satellite/internal/validation"
)

// Validate checks the request fields at the intake boundary. When
// knownBundles is non-nil the bundle slug must be one of them. The store
// itself never validates; rejection happens here.
func (r FeedRequest) Validate(knownBundles []string) error {
	var c validation.Collector
	c.Add(validation.ValidateRange("lat", r.Lat, -90, 90))
	c.Add(validation.ValidateRange("lon", r.Lon, -180, 180))
	c.Add(validation.ValidateRequired("bundle_slug", r.BundleSlug))
	if r.BundleSlug != "" {
		c.Add(validation.ValidateSlug("bundle_slug", r.BundleSlug))
		if knownBundles != nil {
			c.Add(validation.ValidateEnum("bundle_slug", r.BundleSlug, knownBundles))
		}
	}
	if r.Slug != "" {
		c.Add(validation.ValidateSlug("slug", r.Slug))
	}
	c.Add(validation.ValidatePositiveIDs("selected_norad_ids", r.SelectedNoradIDs))
	return c.Err()
}

// Package slug derives the deterministic identities used across the
// request store: coordinate-based location slugs and keys, selection
// fingerprints, and durable request keys. Every function here is pure;
// equal inputs always produce byte-equal output.
package slug

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/kleinpanic/ICS-Satellite/internal/selection"
)

// FormatCoordinate renders a coordinate for use inside a slug: rounded to
// precision decimals, decimal point replaced with 'p', negative values
// prefixed with 'm'. Values that round to zero are rendered unsigned.
//
//	40.7128  -> "40p7128"
//	-74.0060 -> "m74p0060"
func FormatCoordinate(value float64, precision int) string {
	s := strconv.FormatFloat(value, 'f', precision, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
		if isZeroDigits(s) {
			neg = false
		}
	}
	s = strings.Replace(s, ".", "p", 1)
	if neg {
		return "m" + s
	}
	return s
}

func isZeroDigits(s string) bool {
	for _, ch := range s {
		if ch != '0' && ch != '.' {
			return false
		}
	}
	return true
}

// LocationSlug derives the deterministic location slug from rounded
// coordinates: lat<LAT>_lon<LON>.
//
//	(47.6062, -122.3321) -> "lat47p6062_lonm122p3321"
func LocationSlug(lat, lon float64, precision int) string {
	return fmt.Sprintf("lat%s_lon%s", FormatCoordinate(lat, precision), FormatCoordinate(lon, precision))
}

// LocationKey is the coordinate-derived grouping identity. It shares the
// location slug derivation but is kept distinct: a slug may be overridden
// by the caller while the key is always computed from coordinates.
func LocationKey(lat, lon float64, precision int) string {
	return LocationSlug(lat, lon, precision)
}

// SelectionHash returns a deterministic short fingerprint (FNV-1a 32-bit,
// hex) of the normalized selection. Stable across runs; used only to keep
// request keys for non-trivial selections short.
func SelectionHash(ids []int) string {
	normalized := selection.Normalize(ids)
	parts := make([]string, len(normalized))
	for i, id := range normalized {
		parts[i] = strconv.Itoa(id)
	}
	h := fnv.New32a()
	h.Write([]byte(strings.Join(parts, ",")))
	return fmt.Sprintf("%08x", h.Sum32())
}

// RequestKey composes the durable primary identity of a request:
// location--bundle, with a --sel-<hash> suffix when a selection is present.
func RequestKey(locationSlug, bundleSlug string, selectedIDs []int) string {
	normalized := selection.Normalize(selectedIDs)
	if len(normalized) == 0 {
		return fmt.Sprintf("%s--%s", locationSlug, bundleSlug)
	}
	return fmt.Sprintf("%s--%s--sel-%s", locationSlug, bundleSlug, SelectionHash(normalized))
}

// FeedSlug derives the feed identity for a location/bundle pair without a
// selection component.
func FeedSlug(lat, lon float64, bundleSlug string, precision int) string {
	return fmt.Sprintf("%s--%s", LocationSlug(lat, lon, precision), bundleSlug)
}

// ParseLocationSlug recovers lat/lon from a location slug. Returns false
// when the string does not match the expected format.
func ParseLocationSlug(s string) (lat, lon float64, ok bool) {
	if !strings.HasPrefix(s, "lat") {
		return 0, 0, false
	}
	rest := s[len("lat"):]
	latStr, lonStr, found := strings.Cut(rest, "_lon")
	if !found {
		return 0, 0, false
	}
	lat, err := parseCoordinate(latStr)
	if err != nil {
		return 0, 0, false
	}
	lon, err = parseCoordinate(lonStr)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// ParseFeedSlug recovers lat/lon/bundle from a feed slug. Returns false
// when the string does not match the expected format.
func ParseFeedSlug(s string) (lat, lon float64, bundleSlug string, ok bool) {
	idx := strings.LastIndex(s, "--")
	if idx < 0 {
		return 0, 0, "", false
	}
	lat, lon, ok = ParseLocationSlug(s[:idx])
	if !ok {
		return 0, 0, "", false
	}
	return lat, lon, s[idx+2:], true
}

func parseCoordinate(s string) (float64, error) {
	sign := 1.0
	if strings.HasPrefix(s, "m") {
		sign = -1.0
		s = s[1:]
	}
	v, err := strconv.ParseFloat(strings.Replace(s, "p", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	return sign * v, nil
}

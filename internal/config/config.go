// Package config loads and validates the satfeed configuration: site
// metadata, content bundles, request defaults, and the request store path.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kleinpanic/ICS-Satellite/internal/validation"
)

// Bundle kinds. Satellite bundles carry a NORAD id source; planetary
// bundles carry named targets and never a satellite selection.
const (
	KindSatellite = "satellite"
	KindPlanetary = "planetary"
)

// Config is the root configuration structure.
// It is read-only after Load() returns.
type Config struct {
	Site            SiteConfig          `yaml:"site"`
	Bundles         []Bundle            `yaml:"bundles"`
	FeaturedBundles []string            `yaml:"featured_bundles,omitempty"`
	RequestDefaults RequestDefaults     `yaml:"request_defaults"`
	RequestDBPath   string              `yaml:"request_db_path"`
	BackupStorage   BackupStorageConfig `yaml:"backup_storage"`
	Log             LogConfig           `yaml:"log"`
}

// SiteConfig describes the published feed site.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Bundle is a named content bundle observers can request.
type Bundle struct {
	Slug           string   `yaml:"slug"`
	Name           string   `yaml:"name"`
	Kind           string   `yaml:"kind"`
	CelestrakGroup string   `yaml:"celestrak_group,omitempty"`
	NoradIDs       []int    `yaml:"norad_ids,omitempty"`
	PlanetTargets  []string `yaml:"planet_targets,omitempty"`
}

// RequestDefaults governs request identity derivation and selection policy.
type RequestDefaults struct {
	SlugPrecisionDecimals   int `yaml:"slug_precision_decimals"`
	MaxSatellitesPerRequest int `yaml:"max_satellites_per_request"`
}

// BackupStorageConfig configures S3-compatible offsite copies of the
// request database. An empty bucket leaves backups disabled.
type BackupStorageConfig struct {
	Endpoint     string   `yaml:"endpoint"`
	Region       string   `yaml:"region"`
	Bucket       string   `yaml:"bucket"`
	ObjectPrefix string   `yaml:"object_prefix"`
	AccessKey    string   `yaml:"access_key"`
	SecretKey    string   `yaml:"secret_key"`
	UseSSL       *bool    `yaml:"use_ssl,omitempty"`
	URLExpiry    Duration `yaml:"url_expiry"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML parsing of values like "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// The path may be empty, in which case SATFEED_CONFIG_PATH or the default
// location is used; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := newDefaults()

	if path == "" {
		path = getEnv("SATFEED_CONFIG_PATH", "config/satfeed.yaml")
	}
	if err := loadYAMLFile(cfg, path); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path. The file must
// exist. Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		RequestDefaults: RequestDefaults{
			SlugPrecisionDecimals:   4,
			MaxSatellitesPerRequest: 12,
		},
		RequestDBPath: "data/requests.sqlite",
		BackupStorage: BackupStorageConfig{
			ObjectPrefix: "backups",
			URLExpiry:    Duration(15 * time.Minute),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SATFEED_DB_PATH"); v != "" {
		cfg.RequestDBPath = v
	}
	if v := os.Getenv("SATFEED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SATFEED_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SATFEED_SLUG_PRECISION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestDefaults.SlugPrecisionDecimals = n
		}
	}
	if v := os.Getenv("SATFEED_MAX_SATELLITES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestDefaults.MaxSatellitesPerRequest = n
		}
	}
	if v := os.Getenv("SATFEED_BACKUP_BUCKET"); v != "" {
		cfg.BackupStorage.Bucket = v
	}
	if v := os.Getenv("SATFEED_BACKUP_ENDPOINT"); v != "" {
		cfg.BackupStorage.Endpoint = v
	}
	if v := os.Getenv("SATFEED_BACKUP_ACCESS_KEY"); v != "" {
		cfg.BackupStorage.AccessKey = v
	}
	if v := os.Getenv("SATFEED_BACKUP_SECRET_KEY"); v != "" {
		cfg.BackupStorage.SecretKey = v
	}
}

// validate checks configuration invariants after load.
func (c *Config) validate() error {
	var v validation.Collector
	v.Add(validation.ValidateRange("request_defaults.slug_precision_decimals",
		float64(c.RequestDefaults.SlugPrecisionDecimals), 1, 8))
	v.Add(validation.ValidateRange("request_defaults.max_satellites_per_request",
		float64(c.RequestDefaults.MaxSatellitesPerRequest), 1, 200))
	v.Add(validation.ValidateRequired("request_db_path", c.RequestDBPath))
	if c.BackupStorage.Bucket != "" {
		v.Add(validation.ValidateRequired("backup_storage.endpoint", c.BackupStorage.Endpoint))
	}
	if v.HasErrors() {
		return fmt.Errorf("invalid config: %w", v.Err())
	}

	seen := make(map[string]struct{}, len(c.Bundles))
	for _, b := range c.Bundles {
		if err := b.validate(); err != nil {
			return err
		}
		if _, dup := seen[b.Slug]; dup {
			return fmt.Errorf("invalid config: duplicate bundle slug %q", b.Slug)
		}
		seen[b.Slug] = struct{}{}
	}
	for _, fs := range c.FeaturedBundles {
		if _, ok := seen[fs]; !ok {
			return fmt.Errorf("invalid config: featured_bundles references unknown bundle %q", fs)
		}
	}
	return nil
}

func (b Bundle) validate() error {
	if err := validation.ValidateSlug("bundle slug", b.Slug); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch b.Kind {
	case KindPlanetary:
		if b.CelestrakGroup != "" || len(b.NoradIDs) > 0 {
			return fmt.Errorf("invalid config: planetary bundle %q cannot define celestrak_group or norad_ids", b.Slug)
		}
		if len(b.PlanetTargets) == 0 {
			return fmt.Errorf("invalid config: planetary bundle %q requires planet_targets", b.Slug)
		}
	case KindSatellite, "":
		if len(b.PlanetTargets) > 0 {
			return fmt.Errorf("invalid config: satellite bundle %q cannot define planet_targets", b.Slug)
		}
		if b.CelestrakGroup == "" && len(b.NoradIDs) == 0 {
			return fmt.Errorf("invalid config: bundle %q must include celestrak_group and/or norad_ids", b.Slug)
		}
		if err := validation.ValidatePositiveIDs("norad_ids", b.NoradIDs); err != nil {
			return fmt.Errorf("invalid config: bundle %q %w", b.Slug, err)
		}
	default:
		return fmt.Errorf("invalid config: bundle %q kind must be %q or %q", b.Slug, KindSatellite, KindPlanetary)
	}
	return nil
}

// ResolvedKind returns the effective bundle kind, defaulting to satellite.
func (b Bundle) ResolvedKind() string {
	if b.Kind == "" {
		return KindSatellite
	}
	return b.Kind
}

// BundleBySlug returns the bundle with the given slug, if configured.
func (c *Config) BundleBySlug(slug string) (Bundle, bool) {
	for _, b := range c.Bundles {
		if b.Slug == slug {
			return b, true
		}
	}
	return Bundle{}, false
}

// BundleSlugs returns the slugs of every configured bundle, in config order.
func (c *Config) BundleSlugs() []string {
	slugs := make([]string, len(c.Bundles))
	for i, b := range c.Bundles {
		slugs[i] = b.Slug
	}
	return slugs
}

// AvailableIDsByBundle returns, per satellite bundle with an explicit NORAD
// id list, the ids currently available. This is the availability source
// consumed by the canonicalization pass; bundles absent from the map are
// skipped unchanged.
func (c *Config) AvailableIDsByBundle() map[string][]int {
	out := make(map[string][]int)
	for _, b := range c.Bundles {
		if b.ResolvedKind() == KindSatellite && len(b.NoradIDs) > 0 {
			out[b.Slug] = b.NoradIDs
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all knobs of the unlock pipeline.
type Config struct {
	// SourceURL is the vendor URL of the compressed disk image to download.
	SourceURL string `yaml:"source_url"`
	// ArchiveFilename is the local name the downloaded disk image is saved under.
	ArchiveFilename string `yaml:"archive_filename"`
	// PackageName is the preferred installer bundle name inside the mounted
	// volume. Matching is case-insensitive; when no exact match exists, the
	// first package-like bundle on the volume is used instead.
	PackageName string `yaml:"package_name"`
	// OutputFilename is the name of the rebuilt installable package.
	OutputFilename string `yaml:"output_filename"`
	// SentinelVersion replaces the version-gate threshold in the manifest.
	// It must be a two-part dotted number exceeding any real product version.
	SentinelVersion string `yaml:"sentinel_version"`
	// FallbackVolume is the fixed mount path assumed when the attach tool's
	// output yields no mount point.
	FallbackVolume string `yaml:"fallback_volume"`
	// Timeout bounds the whole pipeline run, download and tool calls included.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum level for console logging.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for pipeline settings.
	DefaultConfigFilename = "pkg-unlocker-settings.yaml"

	// DefaultSourceURL is the vendor download used when no settings file overrides it.
	DefaultSourceURL = "https://downloads.example.com/vendor/Installer.dmg"

	// DefaultArchiveFilename is the local name for the downloaded disk image.
	DefaultArchiveFilename = "installer.dmg"

	// DefaultPackageName is the bundle name preferred inside the mounted volume.
	DefaultPackageName = "Installer.pkg"

	// DefaultOutputFilename is the name of the rebuilt package.
	DefaultOutputFilename = "Installer-unlocked.pkg"

	// DefaultSentinelVersion neutralizes the version gate for any plausible release.
	DefaultSentinelVersion = "99.0"

	// DefaultFallbackVolume is the fixed mount path tried when attach output parsing fails.
	DefaultFallbackVolume = "/Volumes/Installer"

	// DefaultTimeout bounds downloads and external tool invocations.
	DefaultTimeout = 15 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBadSentinel is returned when the sentinel is not a two-part dotted number.
	errBadSentinel = errors.New("sentinel version must be a two-part dotted number")

	// sentinelShape is the only threshold shape the manifest patcher writes.
	sentinelShape = regexp.MustCompile(`^\d+\.\d+$`)
)

// Default returns a configuration populated with the embedded defaults.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: the embedded defaults are returned instead.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	} else if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and checks the rest for sanity.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if _, err := url.ParseRequestURI(cfg.SourceURL); err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}

	if !sentinelShape.MatchString(cfg.SentinelVersion) {
		return fmt.Errorf("%q: %w", cfg.SentinelVersion, errBadSentinel)
	}

	return nil
}

// applyDefaults replaces every unset field with its embedded default.
func applyDefaults(cfg *Config) {
	if cfg.SourceURL == "" {
		cfg.SourceURL = DefaultSourceURL
	}

	if cfg.ArchiveFilename == "" {
		cfg.ArchiveFilename = DefaultArchiveFilename
	}

	if cfg.PackageName == "" {
		cfg.PackageName = DefaultPackageName
	}

	if cfg.OutputFilename == "" {
		cfg.OutputFilename = DefaultOutputFilename
	}

	if cfg.SentinelVersion == "" {
		cfg.SentinelVersion = DefaultSentinelVersion
	}

	if cfg.FallbackVolume == "" {
		cfg.FallbackVolume = DefaultFallbackVolume
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks default filling and format validations for settings.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config is valid: every field has an embedded default.
	cfg := new(Config)

	err := Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultSourceURL, cfg.SourceURL)
	require.Equal(t, DefaultSentinelVersion, cfg.SentinelVersion)
	require.Equal(t, DefaultTimeout, cfg.Timeout)

	// Bad URL.
	cfg = &Config{
		SourceURL: "not a url",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Bad sentinel: must be a quoted-shape two-part dotted number.
	cfg = &Config{
		SentinelVersion: "latest",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Three-part versions are rejected too, the gate compares two-part numbers.
	cfg = &Config{
		SentinelVersion: "99.0.1",
	}

	err = Validate(cfg)
	require.Error(t, err)
}

// TestLoadMissingFile ensures a missing settings file yields the defaults.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		SourceURL:       "https://updates.local/Installer.dmg",
		PackageName:     "Vendor.pkg",
		SentinelVersion: "77.7",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.SourceURL, loaded.SourceURL)
	require.Equal(t, cfg.PackageName, loaded.PackageName)
	require.Equal(t, cfg.SentinelVersion, loaded.SentinelVersion)

	// Defaults filled the rest.
	require.Equal(t, DefaultOutputFilename, loaded.OutputFilename)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

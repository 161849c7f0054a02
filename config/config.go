package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the deployment configuration: where the compute service
// lives and local preferences. Nothing in here changes the sync
// protocol itself.
type Config struct {
	ServiceURL        string `json:"serviceUrl"`
	RequestTimeoutSec int    `json:"requestTimeoutSec,omitempty"`
	PreviewPort       string `json:"previewPort,omitempty"` // MIDI out port for note previews
	SongsDir          string `json:"songsDir,omitempty"`
	Debug             bool   `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ServiceURL:        "http://localhost:5050",
		RequestTimeoutSec: 60,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "gridseq"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// SongsPath returns the directory for local song files, defaulting to
// <config dir>/songs.
func (c *Config) SongsPath() (string, error) {
	if c.SongsDir != "" {
		return c.SongsDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "songs"), nil
}

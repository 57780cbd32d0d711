package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrExists is returned by WriteDefault when the target file already exists.
var ErrExists = errors.New("config file already exists")

// Save writes the config to the user's config directory.
func (c *Config) Save() error {
	return c.SaveTo(DefaultPath())
}

// SaveTo writes the config to a specific path, creating parent directories.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultPath is the config file in the user's config directory.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), FileName)
}

// WriteDefault writes the default configuration to path, or to DefaultPath
// when path is empty, and returns the path written. An existing file is
// only replaced when force is set.
func WriteDefault(path string, force bool) (string, error) {
	target := path
	if target == "" {
		target = DefaultPath()
	}
	if !force {
		if _, err := os.Stat(target); err == nil {
			return target, ErrExists
		}
	}

	cfg := Default()
	if path == "" {
		return target, cfg.Save()
	}
	return target, cfg.SaveTo(path)
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the typed settings record loaded from the TOML config file.
type Config struct {
	Storage      StorageConfig       `toml:"storage"`
	Defaults     DefaultsConfig      `toml:"defaults"`
	BindProfiles map[string][]string `toml:"bind_profiles"`
}

// StorageConfig controls where persistent containers live.
type StorageConfig struct {
	ContainersDir string `toml:"containers_dir"`
}

// DefaultsConfig holds flag defaults applied when the invocation does
// not set them.
type DefaultsConfig struct {
	AllowNetwork bool `toml:"allow_network"`
}

// Default returns the built-in configuration, including the stock bind
// profiles.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			ContainersDir: "~/.local/kakuri/containers",
		},
		Defaults: DefaultsConfig{
			AllowNetwork: false,
		},
		BindProfiles: map[string][]string{
			"dev": {
				"~/.config",
				"~/.local",
				"~/.cache",
				"~/.ssh",
			},
			"minimal": {
				"~/.cache",
			},
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "container", "config.toml"), nil
}

// Load reads the configuration from path, or from the default location
// when path is empty. A missing default config is created with the
// built-in defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Storage.ContainersDir == "" {
		cfg.Storage.ContainersDir = Default().Storage.ContainersDir
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// ContainersDir returns the absolute containers directory with the
// leading tilde expanded.
func (c *Config) ContainersDir() (string, error) {
	return ExpandTilde(c.Storage.ContainersDir)
}

// ExpandTilde expands a leading ~ or ~/ against the current home
// directory. Other paths are returned unchanged.
func ExpandTilde(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

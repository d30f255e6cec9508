// SPDX-License-Identifier: MPL-2.0

// Package config loads relpak build settings from defaults, an optional
// relpak.toml file, and explicit overrides, in that precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "relpak"
	// ConfigFileName is the config file name looked up in the working
	// directory when no explicit path is given.
	ConfigFileName = "relpak.toml"
)

type (
	// Config holds the file-configurable build settings. Command-line flags
	// override any value loaded here.
	Config struct {
		// Name is the package name used in artifact file names.
		Name string `mapstructure:"name"`
		// Source is the folder of build output to package.
		Source string `mapstructure:"source"`
		// Output is the folder that receives artifacts and the manifest.
		Output string `mapstructure:"output"`
		// Format is the default archive backend (zip, tar.gz, tar.zst,
		// tar.xz, nupkg).
		Format string `mapstructure:"format"`
		// Level is the compression level for backends that support one.
		Level int `mapstructure:"level"`
		// Parallelism bounds concurrent compression jobs; 0 means the number
		// of CPUs.
		Parallelism int `mapstructure:"parallelism"`
		// Compare selects the delta comparison signature: "mtime" or "hash".
		Compare string `mapstructure:"compare"`
		// Include and Exclude are whole-path regex filters applied to every
		// package built from this configuration.
		Include []string `mapstructure:"include"`
		Exclude []string `mapstructure:"exclude"`
		// Nuspec feeds the nupkg backend.
		Nuspec NuspecConfig `mapstructure:"nuspec"`
	}

	// NuspecConfig is the nupkg metadata section.
	NuspecConfig struct {
		Authors     string `mapstructure:"authors"`
		Description string `mapstructure:"description"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Output:      "dist",
		Format:      "zip",
		Parallelism: runtime.NumCPU(),
		Compare:     "mtime",
	}
}

// Load reads configuration from the given file path. An empty path falls
// back to ./relpak.toml if present; a missing implicit file is not an error
// and yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("output", defaults.Output)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("parallelism", defaults.Parallelism)
	v.SetDefault("compare", defaults.Compare)

	switch {
	case path != "":
		if !fileExists(path) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := loadTOMLIntoViper(v, path); err != nil {
			return nil, err
		}
	case fileExists(ConfigFileName):
		if err := loadTOMLIntoViper(v, ConfigFileName); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// loadTOMLIntoViper parses a TOML file and merges its contents into Viper,
// so defaults and later overrides compose with the file values.
func loadTOMLIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var configMap map[string]any
	if err := toml.Unmarshal(data, &configMap); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Two TOML files make up the configuration: the system config
// (settings.toml under the XDG config dir, holds the data directory
// location) and the user config (config.toml inside the data
// directory, holds everything else). Both are created from templates
// on first use and written with 0600 since they can point at
// credential material.

const userConfigName = "config.toml"

func userConfigPath(dataDir string) string {
	return filepath.Join(dataDir, userConfigName)
}

// SystemConfigExists reports whether settings.toml is present without
// creating it.
func SystemConfigExists() bool {
	return FileExists(GetSettingsFilePath())
}

func LoadSystemConfig() (*SystemConfig, error) {
	cfg := DefaultSystemConfig()
	path := GetSettingsFilePath()

	if !FileExists(path) {
		if err := CreateDefaultSystemConfig(); err != nil {
			return nil, fmt.Errorf("failed to create system config: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse system config: %w", err)
	}
	return cfg, nil
}

func SaveSystemConfig(cfg *SystemConfig) error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := writeTOML(GetSettingsFilePath(), cfg); err != nil {
		return fmt.Errorf("failed to write system config: %w", err)
	}
	return nil
}

func CreateDefaultSystemConfig() error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	path := GetSettingsFilePath()
	if FileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(GenerateSystemConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write system config: %w", err)
	}
	return nil
}

func LoadUserConfig(dataDir string) (*UserConfig, error) {
	cfg := DefaultUserConfig()
	path := userConfigPath(dataDir)

	if !FileExists(path) {
		if err := CreateDefaultUserConfig(dataDir); err != nil {
			return nil, fmt.Errorf("failed to create user config: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}
	return cfg, nil
}

// LoadUserConfigFromPath loads a user config from an explicit path.
// A missing file is not an error; it returns nil.
func LoadUserConfigFromPath(configPath string) (*UserConfig, error) {
	if !FileExists(configPath) {
		return nil, nil
	}

	cfg := &UserConfig{}
	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}
	return cfg, nil
}

func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := writeTOML(userConfigPath(dataDir), cfg); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	return nil
}

func CreateDefaultUserConfig(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	path := userConfigPath(dataDir)
	if FileExists(path) {
		return nil
	}
	if err := os.WriteFile(path, []byte(GenerateUserConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}
	return nil
}

// writeTOML truncates and rewrites a TOML file with 0600 permissions.
func writeTOML(path string, v any) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(v)
}

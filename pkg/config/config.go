// Package config loads the YAML configuration for the hyperbee server and
// CLI.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Backend names one of the concrete logstore.Log implementations a Config
// can select.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendPebble Backend = "pebble"
)

// Config is the full set of knobs for running a hyperbee tree, whether
// driven from the CLI or the HTTP server.
type Config struct {
	DataDir     string  `yaml:"data_dir"`
	Backend     Backend `yaml:"backend"`
	Bind        string  `yaml:"bind"`
	Port        int     `yaml:"port"`
	APIKey      string  `yaml:"api_key"`
	MaxChildren int     `yaml:"max_children"`
	Logging     Logging `yaml:"logging"`
}

// Logging holds the logging section of the config file. Level is stored
// and loaded only; the CLI and server do not read it.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration a fresh install starts from: the
// file backend under ./data, bound to localhost.
func DefaultConfig() *Config {
	return &Config{
		DataDir:     "./data",
		Backend:     BackendFile,
		Bind:        "127.0.0.1",
		Port:        8080,
		APIKey:      "auto",
		MaxChildren: 4,
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveConfig writes config to configPath with owner-only permissions,
// creating its parent directory if needed.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateSecureKey returns a hex-encoded cryptographically random key of
// length bytes, used to mint an API key on first bootstrap.
func GenerateSecureKey(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// BootstrapConfig writes a fresh config to configPath with a generated API
// key. Any file already at configPath is overwritten.
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}
	config.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}
	return config, nil
}

// GetDefaultConfigPath returns ~/.config/hyperbee/config.yaml, falling
// back to a relative path if the home directory can't be resolved.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./hyperbee.yaml"
	}
	return filepath.Join(homeDir, ".config", "hyperbee", "config.yaml")
}

// ConfigExists reports whether a file exists at configPath.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

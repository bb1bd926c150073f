package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/linanwx/hypermath/logger"
)

// Environment variables consulted by Load.
const (
	EnvConfigDir  = "HYPERMATH_CONFIG_DIR"
	EnvBackendURL = "HYPERMATH_BACKEND_URL"
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvClaudeKey  = "ANTHROPIC_API_KEY"
)

// ConfigDir returns the directory holding config.yaml. Precedence:
// SetConfigDir, then HYPERMATH_CONFIG_DIR, then ~/.hypermath.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the full path of config.yaml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads config.yaml, fills defaults and applies environment overrides.
// A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConfig()
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config to ConfigPath, creating the directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		c.Backend.URL = v
	}
	if c.Server.APIKey == "" {
		c.Server.APIKey = APIKeyFromEnv(c.Server.Explainer)
	}
}

// APIKeyFromEnv returns the environment credential for an explainer kind.
func APIKeyFromEnv(explainer string) string {
	switch explainer {
	case "openai":
		return strings.TrimSpace(os.Getenv(EnvOpenAIKey))
	case "anthropic":
		return strings.TrimSpace(os.Getenv(EnvClaudeKey))
	}
	return ""
}

// StaticPath resolves the server's static directory against the config dir.
func (c *Config) StaticPath() (string, error) {
	dir := c.Server.StaticDir
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	base, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, dir), nil
}

// BuildLoggerConfig converts the logging section for logger.Init.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
		Format:  c.Logging.Format,
	}
}

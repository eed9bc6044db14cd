// Package config persists operator preferences and the command policy.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppName names the per-user config and state directories.
const AppName = "agens"

// Config is the persisted operator configuration.
type Config struct {
	AllowPatterns []string `yaml:"allow_patterns"`
	DenyPatterns  []string `yaml:"deny_patterns"`

	AutoConfirm bool `yaml:"auto_confirm"`
	AutoDryRun  bool `yaml:"auto_dry_run"`

	LastBackend string `yaml:"last_backend,omitempty"`
	LastModel   string `yaml:"last_model,omitempty"`
	LastCwd     string `yaml:"last_cwd,omitempty"`

	// UnifiedGPURatio is the share of unified memory assumed usable by the
	// GPU on Apple Silicon, in (0,1).
	UnifiedGPURatio float64 `yaml:"unified_gpu_ratio"`
	// Language is the reply language code ("en", "ja").
	Language string `yaml:"language"`
}

// DefaultConfig returns the configuration used on first run.
func DefaultConfig() *Config {
	return &Config{
		AllowPatterns:   []string{},
		DenyPatterns:    []string{},
		UnifiedGPURatio: 0.5,
		Language:        "en",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/agens/config.yaml, falling back to
// $HOME/.config and then the working directory.
func DefaultPath() string {
	return filepath.Join(configHome(os.LookupEnv), AppName, "config.yaml")
}

func configHome(lookup func(string) (string, bool)) string {
	if dir, ok := lookup("XDG_CONFIG_HOME"); ok && dir != "" {
		return dir
	}
	if home, ok := lookup("HOME"); ok && home != "" {
		return filepath.Join(home, ".config")
	}
	return "."
}

// StateDir returns $XDG_STATE_HOME/agens, falling back to
// $HOME/.local/state/agens and then ./agens.
func StateDir() string {
	return stateDir(os.LookupEnv)
}

func stateDir(lookup func(string) (string, bool)) string {
	if dir, ok := lookup("XDG_STATE_HOME"); ok && dir != "" {
		return filepath.Join(dir, AppName)
	}
	if home, ok := lookup("HOME"); ok && home != "" {
		return filepath.Join(home, ".local", "state", AppName)
	}
	return AppName
}

// Load reads the config at path. A missing file is created with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to path, replacing any previous file atomically.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from AGENS_LANG and AGENS_UNIFIED_GPU_RATIO.
// Pass os.LookupEnv in production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lang, ok := lookup("AGENS_LANG"); ok && (lang == "en" || lang == "ja") {
		c.Language = lang
	}
	if raw, ok := lookup("AGENS_UNIFIED_GPU_RATIO"); ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			c.UnifiedGPURatio = v
		}
	}
	c.normalize()
}

func (c *Config) normalize() {
	if !(c.UnifiedGPURatio > 0 && c.UnifiedGPURatio < 1) {
		c.UnifiedGPURatio = 0.5
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.AllowPatterns == nil {
		c.AllowPatterns = []string{}
	}
	if c.DenyPatterns == nil {
		c.DenyPatterns = []string{}
	}
}

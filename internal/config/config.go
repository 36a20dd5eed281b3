// Package config handles configuration loading and management for brigade.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/brigade/internal/store"
)

// Store drivers.
const (
	DriverSQLite  = store.DriverSQLite
	DriverSQLite3 = store.DriverSQLite3
	DriverMemory  = "memory"
)

// Role executor kinds.
const (
	KindCommand = "command"
	KindClaude  = "claude"
)

// Config holds all configuration for brigade.
type Config struct {
	Store     StoreConfig           `mapstructure:"store"`
	Dispatch  DispatchConfig        `mapstructure:"dispatch"`
	Anthropic AnthropicConfig       `mapstructure:"anthropic"`
	Roles     map[string]RoleConfig `mapstructure:"roles"`
	Log       LogConfig             `mapstructure:"log"`
	TUI       TUIConfig             `mapstructure:"tui"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	// Driver is sqlite (pure Go), sqlite3 (cgo) or memory.
	Driver string `mapstructure:"driver"`
	// Path is the database file. Empty means .brigade/state.db in the project.
	Path string `mapstructure:"path"`
}

// DispatchConfig holds dispatcher tuning.
type DispatchConfig struct {
	Mode         string        `mapstructure:"mode"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	ExecTimeout  time.Duration `mapstructure:"exec_timeout"`
	StallLimit   int           `mapstructure:"stall_limit"`
	// Notify wakes waiting loops on store changes instead of pure polling.
	Notify bool `mapstructure:"notify"`
	// Preflight validates the task graph before execution.
	Preflight bool `mapstructure:"preflight"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RoleConfig describes how one role executes its tasks.
type RoleConfig struct {
	// Kind is command or claude.
	Kind string `mapstructure:"kind"`
	// Command is the shell script for command roles.
	Command string `mapstructure:"command"`
	// Dir is the working directory for command roles.
	Dir string `mapstructure:"dir"`
	// SystemPrompt is the system prompt for claude roles.
	SystemPrompt string `mapstructure:"system_prompt"`
	// Model overrides anthropic.model for claude roles.
	Model string `mapstructure:"model"`
	// MaxTokens caps each claude completion.
	MaxTokens int64 `mapstructure:"max_tokens"`
	// Background detaches every task of the role.
	Background bool `mapstructure:"background"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// Path is the debug log file. Empty means .brigade/logs/dispatch-debug.log.
	Path string `mapstructure:"path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, BRIGADE_*)
// 2. Project config (.brigade.yaml in current directory or parent)
// 3. User config (~/.config/brigade/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file on top of the
// defaults and environment.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("BRIGADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "BRIGADE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	if cfg.Roles == nil {
		cfg.Roles = make(map[string]RoleConfig)
	}
	return cfg, nil
}

// Validate checks enumerated values and per-role requirements.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverSQLite3, DriverMemory:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	switch c.Dispatch.Mode {
	case "workers", "coordinator":
	default:
		return fmt.Errorf("dispatch.mode: unknown mode %q", c.Dispatch.Mode)
	}
	if c.Dispatch.MaxAttempts < 0 || c.Dispatch.StallLimit < 0 {
		return fmt.Errorf("dispatch: max_attempts and stall_limit must not be negative")
	}

	for _, name := range c.RoleNames() {
		r := c.Roles[name]
		switch r.Kind {
		case KindCommand:
			if r.Command == "" {
				return fmt.Errorf("roles.%s: command role needs a command", name)
			}
		case KindClaude:
		default:
			return fmt.Errorf("roles.%s: unknown kind %q", name, r.Kind)
		}
	}
	return nil
}

// Role looks up a role by name. Viper lowercases map keys, so the lookup
// ignores case.
func (c *Config) Role(name string) (RoleConfig, bool) {
	if r, ok := c.Roles[name]; ok {
		return r, true
	}
	r, ok := c.Roles[strings.ToLower(name)]
	return r, ok
}

// RoleNames returns configured role names, sorted.
func (c *Config) RoleNames() []string {
	names := make([]string, 0, len(c.Roles))
	for n := range c.Roles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StorePath returns the configured database path, or the project default
// under dir.
func (c *Config) StorePath(dir string) string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return store.ProjectDBPath(dir)
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.path", "")

	v.SetDefault("dispatch.mode", "workers")
	v.SetDefault("dispatch.poll_interval", "200ms")
	v.SetDefault("dispatch.max_attempts", 0)
	v.SetDefault("dispatch.exec_timeout", "0s")
	v.SetDefault("dispatch.stall_limit", 0)
	v.SetDefault("dispatch.notify", true)
	v.SetDefault("dispatch.preflight", true)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("log.path", "")
	v.SetDefault("tui.refresh_rate", "250ms")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Driver: DriverSQLite},
		Dispatch: DispatchConfig{
			Mode:         "workers",
			PollInterval: 200 * time.Millisecond,
			Notify:       true,
			Preflight:    true,
		},
		Anthropic: AnthropicConfig{Model: "claude-sonnet-4-20250514"},
		Roles:     make(map[string]RoleConfig),
		TUI:       TUIConfig{RefreshRate: 250 * time.Millisecond},
	}
}

// getUserConfigDir returns the XDG config directory for brigade.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "brigade")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "brigade")
	}
	return filepath.Join(home, ".config", "brigade")
}

// findProjectConfig searches for .brigade.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".brigade.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

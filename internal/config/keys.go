package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no Anthropic API key configured")

// ErrUnknownKey is returned for keys the config command does not manage.
var ErrUnknownKey = errors.New("unknown configuration key")

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// ResolveAPIKey returns the Anthropic API key and where it came from.
// The environment wins over the config file.
func ResolveAPIKey(cfg *Config) (string, KeySource, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key, KeySourceEnv, nil
	}

	if cfg != nil && cfg.Anthropic.APIKey != "" {
		key := os.ExpandEnv(cfg.Anthropic.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig, nil
		}
	}

	return "", KeySourceNone, ErrNoAPIKey
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters (sk-ant-) and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

type valueKind int

const (
	kindString valueKind = iota
	kindBool
	kindInt
	kindDuration
	kindSecret
)

// scalarKeys lists the keys `brigade config` can read and write.
var scalarKeys = map[string]valueKind{
	"store.driver":           kindString,
	"store.path":             kindString,
	"dispatch.mode":          kindString,
	"dispatch.poll_interval": kindDuration,
	"dispatch.max_attempts":  kindInt,
	"dispatch.exec_timeout":  kindDuration,
	"dispatch.stall_limit":   kindInt,
	"dispatch.notify":        kindBool,
	"dispatch.preflight":     kindBool,
	"anthropic.api_key":      kindSecret,
	"anthropic.model":        kindString,
	"anthropic.use_bedrock":  kindBool,
	"anthropic.aws_region":   kindString,
	"anthropic.aws_profile":  kindString,
	"log.path":               kindString,
	"tui.refresh_rate":       kindDuration,
}

// Keys returns the managed scalar keys in display order.
func Keys() []string {
	return []string{
		"store.driver", "store.path",
		"dispatch.mode", "dispatch.poll_interval", "dispatch.max_attempts",
		"dispatch.exec_timeout", "dispatch.stall_limit", "dispatch.notify", "dispatch.preflight",
		"anthropic.api_key", "anthropic.model", "anthropic.use_bedrock",
		"anthropic.aws_region", "anthropic.aws_profile",
		"log.path", "tui.refresh_rate",
	}
}

// Value renders a managed key for display. Secrets are masked.
func (c *Config) Value(key string) (string, error) {
	switch strings.ToLower(key) {
	case "store.driver":
		return c.Store.Driver, nil
	case "store.path":
		return c.Store.Path, nil
	case "dispatch.mode":
		return c.Dispatch.Mode, nil
	case "dispatch.poll_interval":
		return c.Dispatch.PollInterval.String(), nil
	case "dispatch.max_attempts":
		return strconv.Itoa(c.Dispatch.MaxAttempts), nil
	case "dispatch.exec_timeout":
		return c.Dispatch.ExecTimeout.String(), nil
	case "dispatch.stall_limit":
		return strconv.Itoa(c.Dispatch.StallLimit), nil
	case "dispatch.notify":
		return strconv.FormatBool(c.Dispatch.Notify), nil
	case "dispatch.preflight":
		return strconv.FormatBool(c.Dispatch.Preflight), nil
	case "anthropic.api_key":
		return MaskAPIKey(c.Anthropic.APIKey), nil
	case "anthropic.model":
		return c.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(c.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return c.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return c.Anthropic.AWSProfile, nil
	case "log.path":
		return c.Log.Path, nil
	case "tui.refresh_rate":
		return c.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// parseValue converts a command-line value to the key's type.
func parseValue(key, value string) (interface{}, error) {
	kind, ok := scalarKeys[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return n, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d.String(), nil
	default:
		return value, nil
	}
}

// Set writes one managed key to the user config file, keeping every other
// setting in that file, including roles.
func Set(key, value string) error {
	return SetInFile(GetUserConfigPath(), key, value)
}

// SetInFile writes one managed key to the config file at path.
func SetInFile(path, key, value string) error {
	key = strings.ToLower(key)
	typed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	v.Set(key, typed)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

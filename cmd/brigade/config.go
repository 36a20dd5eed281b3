package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/brigade/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify brigade configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/brigade/config.yaml
Project-specific overrides can be placed in .brigade.yaml
Roles are edited in the file directly.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cmd, cfg)
			return nil
		case 1:
			value, err := cfg.Value(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		default:
			path := configPath
			if path == "" {
				path = config.GetUserConfigPath()
			}
			if err := config.SetInFile(path, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		}
	},
}

// displayAllConfig prints all configuration values and the configured roles.
func displayAllConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	for _, key := range config.Keys() {
		value, _ := cfg.Value(key)
		fmt.Fprintf(out, "%s: %s\n", key, value)
	}

	if _, src, err := config.ResolveAPIKey(cfg); err == nil {
		fmt.Fprintf(out, "(api key from %s)\n", src)
	}

	if len(cfg.Roles) == 0 {
		fmt.Fprintln(out, "roles: (none)")
		return
	}
	fmt.Fprintln(out, "roles:")
	for _, name := range cfg.RoleNames() {
		r := cfg.Roles[name]
		detail := r.Command
		if r.Kind == config.KindClaude {
			detail = r.Model
			if detail == "" {
				detail = cfg.Anthropic.Model
			}
		}
		bg := ""
		if r.Background {
			bg = " (background)"
		}
		fmt.Fprintf(out, "  %s: %s %s%s\n", name, r.Kind, detail, bg)
	}
}

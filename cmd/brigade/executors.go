package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/brigade/internal/api"
	"github.com/ShayCichocki/brigade/internal/config"
	iexec "github.com/ShayCichocki/brigade/internal/exec"
	"github.com/ShayCichocki/brigade/internal/executor"
	"github.com/ShayCichocki/brigade/internal/orchestrator"
	"github.com/ShayCichocki/brigade/internal/store"
)

// roleExecutors is the executor set for one run plus the background
// wrappers whose detached units may outlive the dispatcher.
type roleExecutors struct {
	byRole      map[string]orchestrator.Executor
	backgrounds []*executor.Background
	client      *api.Client
}

// newAPIClient is swapped in tests.
var newAPIClient = func(cfg *config.Config) (*api.Client, error) {
	clientCfg := api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	}
	if !cfg.Anthropic.UseBedrock {
		key, _, err := config.ResolveAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		clientCfg.APIKey = key
	}
	client, err := api.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// buildExecutors creates one executor per role named by the job's tasks.
// Roles without configuration get no executor; the dispatcher reports them.
func buildExecutors(cfg *config.Config, s store.Store, runner iexec.CommandRunner, roles []string) (*roleExecutors, error) {
	out := &roleExecutors{byRole: make(map[string]orchestrator.Executor)}

	for _, role := range roles {
		rc, ok := cfg.Role(role)
		if !ok {
			continue
		}

		var exec orchestrator.Executor
		switch rc.Kind {
		case config.KindCommand:
			exec = executor.NewCommand(runner, rc.Command, rc.Dir)
		case config.KindClaude:
			if out.client == nil {
				client, err := newAPIClient(cfg)
				if err != nil {
					return nil, fmt.Errorf("role %s: %w", role, err)
				}
				out.client = client
			}
			opts := []executor.ClaudeOption{executor.WithSystemPrompt(rc.SystemPrompt)}
			if rc.Model != "" {
				opts = append(opts, executor.WithModel(rc.Model))
			}
			if rc.MaxTokens > 0 {
				opts = append(opts, executor.WithMaxTokens(rc.MaxTokens))
			}
			exec = executor.NewClaude(out.client, opts...)
		default:
			return nil, fmt.Errorf("role %s: unknown kind %q", role, rc.Kind)
		}

		if rc.Background {
			bg := executor.NewBackground(s, exec)
			out.backgrounds = append(out.backgrounds, bg)
			exec = bg
		}
		out.byRole[role] = exec
	}

	return out, nil
}

// dispatchOptions translates the dispatch config into orchestrator options.
func dispatchOptions(cfg *config.Config, notifier store.ChangeNotifier, mode orchestrator.Mode, planRoles []string) []orchestrator.Option {
	d := cfg.Dispatch
	opts := []orchestrator.Option{
		orchestrator.WithMode(mode),
		orchestrator.WithMaxAttempts(d.MaxAttempts),
		orchestrator.WithExecTimeout(d.ExecTimeout),
		orchestrator.WithStallLimit(d.StallLimit),
	}
	if d.Notify && notifier != nil {
		opts = append(opts, orchestrator.WithBackoff(orchestrator.NotifyBackoff{Notifier: notifier, Fallback: d.PollInterval}))
	} else {
		opts = append(opts, orchestrator.WithPollInterval(d.PollInterval))
	}
	if d.Preflight {
		opts = append(opts, orchestrator.WithPreflight(planRoles...))
	}
	return opts
}

// unconfiguredRoles returns the roles that have no entry under roles: in
// the config.
func unconfiguredRoles(cfg *config.Config, roles []string) []string {
	var missing []string
	for _, r := range roles {
		if _, ok := cfg.Role(r); !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

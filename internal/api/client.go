// Package api provides direct Anthropic API integration for role executors.
package api

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultMaxTokens caps a single completion when the request sets no limit.
const DefaultMaxTokens int64 = 4096

// Client sends completions for Claude roles. One client is shared by every
// role of a job so usage adds up across them.
type Client struct {
	inner   anthropic.Client
	model   anthropic.Model
	bedrock bool

	mu    sync.Mutex
	usage Usage
}

// ClientConfig contains configuration for creating a new Client.
type ClientConfig struct {
	// Model is used when a request names none. Defaults to Claude Sonnet 4.
	Model anthropic.Model
	// APIKey falls back to ANTHROPIC_API_KEY.
	APIKey string
	// UseAWSBedrock routes calls through Bedrock with the default AWS chain.
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// MaxRetries overrides the SDK's retry count when positive.
	MaxRetries int
}

// Usage totals the successful calls made through a Client.
type Usage struct {
	Calls        int
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) String() string {
	return fmt.Sprintf("%d calls, %d in / %d out tokens", u.Calls, u.InputTokens, u.OutputTokens)
}

// NewClient creates a new Anthropic API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	c := &Client{
		inner:   anthropic.NewClient(opts...),
		model:   anthropic.ModelClaudeSonnet4_20250514,
		bedrock: cfg.UseAWSBedrock,
	}
	if cfg.Model != "" {
		c.model = cfg.Model
	}
	c.model = c.resolveModel(c.model)
	return c, nil
}

// resolveModel maps a dated model id to its Bedrock cross-region inference
// profile (us.anthropic.<model>-v1:0). Ids already in Bedrock form pass through.
func (c *Client) resolveModel(model anthropic.Model) anthropic.Model {
	if !c.bedrock || strings.Contains(string(model), "anthropic.") {
		return model
	}
	return anthropic.Model("us.anthropic." + string(model) + "-v1:0")
}

// Model returns the default model requests are sent to.
func (c *Client) Model() anthropic.Model {
	return c.model
}

// Usage returns the totals recorded so far.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Client) record(input, output int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.usage.Calls++
	c.usage.InputTokens += input
	c.usage.OutputTokens += output
}

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hrygo/cortex/ai/metrics"
	"github.com/hrygo/cortex/internal/profile"
)

// Config represents the remote assistant client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	RPS     float64 // Requests per second (default: 5)
	Timeout int     // Request timeout in seconds (default: 60)
	// MaxInFlight caps concurrent requests (default: 4).
	MaxInFlight int64
}

type openAIClient struct {
	client   *openai.Client
	limiter  *rate.Limiter
	inflight *semaphore.Weighted
	timeout  time.Duration
	metrics  *metrics.PrometheusExporter
}

// NewOpenAIClient creates a client over the OpenAI Assistants API.
func NewOpenAIClient(cfg Config, m *metrics.PrometheusExporter) (AssistantClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider api key is not configured")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = newHTTPClient()

	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}

	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 4
	}

	return &openAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		limiter:  rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		inflight: semaphore.NewWeighted(maxInFlight),
		timeout:  time.Duration(timeout) * time.Second,
		metrics:  m,
	}, nil
}

// FromProfile returns the process-wide lazily initialized client.
func FromProfile(p *profile.Profile, m *metrics.PrometheusExporter) *Lazy {
	return NewLazy(func() (AssistantClient, error) {
		return NewOpenAIClient(configFromProfile(p), m)
	})
}

func configFromProfile(p *profile.Profile) Config {
	return Config{
		APIKey:      p.ProviderAPIKey,
		BaseURL:     p.ProviderBaseURL,
		RPS:         p.ProviderRPS,
		Timeout:     p.ProviderTimeout,
		MaxInFlight: int64(p.ProviderMaxInFlight),
	}
}

// call waits for the limiter, applies the timeout and records the outcome.
func (c *openAIClient) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoteProvider, method, err)
	}
	if err := c.inflight.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemoteProvider, method, err)
	}
	defer c.inflight.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordRemoteCall(method, time.Since(start), err == nil)
	if err != nil {
		slog.Warn("assistant provider call failed", "method", method, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrRemoteProvider, method, err)
	}
	return nil
}

func (c *openAIClient) CreateAssistant(ctx context.Context, create *CreateRemoteAssistant) (*RemoteAssistant, error) {
	req := openai.AssistantRequest{
		Model:        create.Model,
		Name:         optional(create.Name),
		Description:  optional(create.Description),
		Instructions: optional(create.Instructions),
	}

	var result *RemoteAssistant
	err := c.call(ctx, "create_assistant", func(ctx context.Context) error {
		resp, err := c.client.CreateAssistant(ctx, req)
		if err != nil {
			return err
		}
		if resp.ID == "" {
			return fmt.Errorf("response carries no assistant id")
		}
		result = convertAssistant(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *openAIClient) GetAssistant(ctx context.Context, id string) (*RemoteAssistant, error) {
	var result *RemoteAssistant
	err := c.call(ctx, "get_assistant", func(ctx context.Context) error {
		resp, err := c.client.RetrieveAssistant(ctx, id)
		if err != nil {
			return err
		}
		result = convertAssistant(resp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *openAIClient) UpdateAssistant(ctx context.Context, id string, update *UpdateRemoteAssistant) error {
	req := openai.AssistantRequest{
		Model:        update.Model,
		Name:         update.Name,
		Description:  update.Description,
		Instructions: update.Instructions,
	}
	return c.call(ctx, "update_assistant", func(ctx context.Context) error {
		_, err := c.client.ModifyAssistant(ctx, id, req)
		return err
	})
}

func (c *openAIClient) DeleteAssistant(ctx context.Context, id string) error {
	return c.call(ctx, "delete_assistant", func(ctx context.Context) error {
		resp, err := c.client.DeleteAssistant(ctx, id)
		if err != nil {
			return err
		}
		if !resp.Deleted {
			return fmt.Errorf("assistant %s was not deleted", id)
		}
		return nil
	})
}

func convertAssistant(a openai.Assistant) *RemoteAssistant {
	return &RemoteAssistant{
		ID:           a.ID,
		Name:         deref(a.Name),
		Description:  deref(a.Description),
		Model:        a.Model,
		Instructions: deref(a.Instructions),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAPIKeyEnv names the environment variable holding the API key.
const AnthropicAPIKeyEnv = "ANTHROPIC_API_KEY"

// AnthropicClient is the opt-in remote backend.
type AnthropicClient struct {
	client anthropic.Client
	hasKey bool
}

// NewAnthropicClient creates a client using ANTHROPIC_API_KEY unless
// WithAPIKey is given.
func NewAnthropicClient(opts ...ClientOption) *AnthropicClient {
	o := buildOptions("", os.Getenv(AnthropicAPIKeyEnv), opts)
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithHTTPClient(o.httpClient),
	}
	if o.baseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(o.baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(sdkOpts...),
		hasKey: o.apiKey != "",
	}
}

// Name returns "anthropic".
func (c *AnthropicClient) Name() string { return "anthropic" }

// Probe reports whether an API key is configured. It does not call out, so
// startup never sends traffic to a remote service unasked.
func (c *AnthropicClient) Probe(context.Context) bool { return c.hasKey }

// ListModels returns the model IDs available to the key.
func (c *AnthropicClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to list models: %w", err)
	}
	var ids []string
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return sortUnique(ids), nil
}

// Chat sends a Messages API request. System messages are lifted into the
// request's system blocks.
func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, tuning Tuning) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(tuning.MaxTokens),
		Temperature: anthropic.Float(tuning.Temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: chat request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoReply
	}
	return b.String(), nil
}

package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultLMStudioURL is LM Studio's OpenAI-compatible endpoint.
const DefaultLMStudioURL = "http://localhost:1234/v1"

// lmStudioAPIKey is the placeholder key LM Studio expects.
const lmStudioAPIKey = "lm-studio"

// LMStudioClient talks to LM Studio through its OpenAI-compatible API.
type LMStudioClient struct {
	client openai.Client
}

// NewLMStudioClient creates a client for the local LM Studio server.
func NewLMStudioClient(opts ...ClientOption) *LMStudioClient {
	o := buildOptions(DefaultLMStudioURL, lmStudioAPIKey, opts)
	return &LMStudioClient{
		client: openai.NewClient(
			option.WithBaseURL(o.baseURL),
			option.WithAPIKey(o.apiKey),
			option.WithHTTPClient(o.httpClient),
			option.WithMaxRetries(0),
		),
	}
}

// Name returns "lmstudio".
func (c *LMStudioClient) Name() string { return "lmstudio" }

// Probe lists models; any successful response means the server is up.
func (c *LMStudioClient) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := c.client.Models.List(ctx)
	return err == nil
}

// ListModels returns the model IDs LM Studio has loaded or downloaded.
func (c *LMStudioClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("lmstudio: failed to list models: %w", err)
	}
	var ids []string
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return sortUnique(ids), nil
}

// Chat sends a chat completion request. GPULayers, when set, is passed as
// LM Studio's extra.gpu_layers field.
func (c *LMStudioClient) Chat(ctx context.Context, model string, messages []Message, tuning Tuning) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    buildOpenAIMessages(messages),
		Temperature: openai.Float(tuning.Temperature),
		TopP:        openai.Float(tuning.TopP),
		MaxTokens:   openai.Int(int64(tuning.MaxTokens)),
	}

	var reqOpts []option.RequestOption
	if tuning.GPULayers >= 0 {
		reqOpts = append(reqOpts, option.WithJSONSet("extra.gpu_layers", tuning.GPULayers))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		return "", fmt.Errorf("lmstudio: chat request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoReply
	}
	return resp.Choices[0].Message.Content, nil
}

func buildOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

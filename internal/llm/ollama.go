package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultOllamaURL is the local Ollama server.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient talks to Ollama's native HTTP API.
type OllamaClient struct {
	baseURL string
	http    *http.Client
}

// NewOllamaClient creates a client for the local Ollama server.
func NewOllamaClient(opts ...ClientOption) *OllamaClient {
	o := buildOptions(DefaultOllamaURL, "", opts)
	return &OllamaClient{baseURL: strings.TrimRight(o.baseURL, "/"), http: o.httpClient}
}

// Name returns "ollama".
func (c *OllamaClient) Name() string { return "ollama" }

// Probe checks /api/version.
func (c *OllamaClient) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	body, err := c.get(ctx, "/api/version")
	if err != nil {
		return false
	}
	return gjson.GetBytes(body, "version").Exists()
}

// ListModels returns the locally pulled models from /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range gjson.GetBytes(body, "models.#.name").Array() {
		names = append(names, m.String())
	}
	return sortUnique(names), nil
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []ollamaMessage `json:"messages"`
	Options  ollamaOptions   `json:"options"`
}

// Chat posts a non-streaming request to /api/chat.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, tuning Tuning) (string, error) {
	req := ollamaChatRequest{
		Model:  model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: tuning.Temperature,
			TopP:        tuning.TopP,
			NumCtx:      tuning.Context,
			NumPredict:  tuning.MaxTokens,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	content := gjson.GetBytes(body, "message.content")
	if !content.Exists() {
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			return "", fmt.Errorf("%w: ollama: %s", ErrNoReply, msg.String())
		}
		return "", ErrNoReply
	}
	return content.String(), nil
}

func (c *OllamaClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build ollama request: %w", err)
	}
	return c.do(req)
}

func (c *OllamaClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

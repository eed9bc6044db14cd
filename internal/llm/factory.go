package llm

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by NewClient.
const (
	BackendOllama    = "ollama"
	BackendLMStudio  = "lmstudio"
	BackendAnthropic = "anthropic"
)

// LocalBackends are probed at startup, in preference order.
var LocalBackends = []string{BackendOllama, BackendLMStudio}

// NormalizeBackend maps accepted spellings to a backend name.
func NormalizeBackend(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ollama":
		return BackendOllama
	case "lmstudio", "lm-studio", "lm_studio":
		return BackendLMStudio
	case "anthropic", "claude":
		return BackendAnthropic
	default:
		return ""
	}
}

// NewClient creates the client for a backend name.
func NewClient(backend string, opts ...ClientOption) (Client, error) {
	switch NormalizeBackend(backend) {
	case BackendOllama:
		return NewOllamaClient(opts...), nil
	case BackendLMStudio:
		return NewLMStudioClient(opts...), nil
	case BackendAnthropic:
		return NewAnthropicClient(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: ollama, lmstudio, anthropic)", ErrUnknownBackend, backend)
	}
}

// Detect returns the clients that answer a probe, preserving order.
func Detect(ctx context.Context, clients ...Client) []Client {
	var up []Client
	for _, c := range clients {
		if c.Probe(ctx) {
			up = append(up, c)
		}
	}
	return up
}

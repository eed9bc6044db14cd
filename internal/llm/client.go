// Package llm talks to the conversational model backends.
//
// Local backends (Ollama, LM Studio) are the default. Anthropic is available
// as an opt-in remote backend when an API key is configured.
package llm

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"
)

// ErrNoReply is returned when a backend produced no usable reply text.
var ErrNoReply = errors.New("no reply available")

// ErrUnknownBackend is returned by NewClient for an unrecognized name.
var ErrUnknownBackend = errors.New("unknown backend")

// Role is a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// Tuning holds the sampling and context parameters sent with each request.
type Tuning struct {
	Context     int
	MaxTokens   int
	Temperature float64
	TopP        float64
	// GPULayers is forwarded to backends that accept it; negative means unset.
	GPULayers int
}

// DefaultTuning returns the parameters used before resource probing.
func DefaultTuning() Tuning {
	return Tuning{
		Context:     4096,
		MaxTokens:   512,
		Temperature: 0.7,
		TopP:        0.9,
		GPULayers:   -1,
	}
}

// Client is a chat backend.
type Client interface {
	// Name is the backend identifier ("ollama", "lmstudio", "anthropic").
	Name() string
	// Probe reports whether the backend is reachable.
	Probe(ctx context.Context) bool
	// ListModels returns the available model names, sorted and deduplicated.
	ListModels(ctx context.Context) ([]string, error)
	// Chat sends the conversation and returns the reply text.
	Chat(ctx context.Context, model string, messages []Message, tuning Tuning) (string, error)
}

// probeTimeout bounds reachability checks so startup stays responsive.
const probeTimeout = 2 * time.Second

type clientOptions struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// ClientOption configures a backend client.
type ClientOption func(*clientOptions)

// WithBaseURL overrides the backend's default endpoint.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithAPIKey overrides the backend's API key.
func WithAPIKey(key string) ClientOption {
	return func(o *clientOptions) { o.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.httpClient = c }
}

func buildOptions(defaultURL, defaultKey string, opts []ClientOption) clientOptions {
	o := clientOptions{baseURL: defaultURL, apiKey: defaultKey, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// sortUnique sorts names and drops duplicates and empty entries.
func sortUnique(names []string) []string {
	sort.Strings(names)
	var out []string
	for _, n := range names {
		if n == "" || (len(out) > 0 && out[len(out)-1] == n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/agens/internal/llm"
)

func backendsNamed(names ...string) []llm.Client {
	clients := make([]llm.Client, len(names))
	for i, n := range names {
		clients[i] = &stubClient{name: n}
	}
	return clients
}

func TestChooseBackend(t *testing.T) {
	tests := []struct {
		name     string
		choice   BackendChoice
		input    []string
		expected string
		warned   bool
	}{
		{
			name:     "flag wins over last",
			choice:   BackendChoice{Preferred: "LM-Studio", Last: "ollama", Detected: backendsNamed("ollama", "lmstudio")},
			expected: "lmstudio",
		},
		{
			name:     "last choice still running",
			choice:   BackendChoice{Last: "lmstudio", Detected: backendsNamed("ollama", "lmstudio")},
			expected: "lmstudio",
		},
		{
			name:     "single detected",
			choice:   BackendChoice{Last: "lmstudio", Detected: backendsNamed("ollama")},
			expected: "ollama",
		},
		{
			name:     "prompt picks number",
			choice:   BackendChoice{Detected: backendsNamed("ollama", "lmstudio")},
			input:    []string{"2"},
			expected: "lmstudio",
		},
		{
			name:     "prompt empty picks first",
			choice:   BackendChoice{Detected: backendsNamed("ollama", "lmstudio")},
			input:    []string{""},
			expected: "ollama",
		},
		{
			name:     "prompt out of range picks first",
			choice:   BackendChoice{Detected: backendsNamed("ollama", "lmstudio")},
			input:    []string{"7"},
			expected: "ollama",
		},
		{
			name:     "prompt garbage warns and picks first",
			choice:   BackendChoice{Detected: backendsNamed("ollama", "lmstudio")},
			input:    []string{"two"},
			expected: "ollama",
			warned:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			got, err := ChooseBackend(&scriptedReader{lines: tt.input}, NewRenderer(&buf, true, true), tt.choice)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Name())
			if tt.warned {
				assert.Contains(t, buf.String(), "invalid input; using 1")
			} else {
				assert.NotContains(t, buf.String(), "invalid input")
			}
		})
	}
}

func TestChooseBackend_PreferredNotDetected(t *testing.T) {
	var built string
	choice := BackendChoice{
		Preferred: "anthropic",
		Detected:  backendsNamed("ollama"),
		New: func(name string) (llm.Client, error) {
			built = name
			return &stubClient{name: "anthropic"}, nil
		},
	}

	got, err := ChooseBackend(&scriptedReader{}, NewRenderer(&bytes.Buffer{}, true, true), choice)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.Name())
	assert.Equal(t, "anthropic", built)
}

func TestChooseBackend_UnknownPreferred(t *testing.T) {
	_, err := ChooseBackend(&scriptedReader{}, NewRenderer(&bytes.Buffer{}, true, true), BackendChoice{Preferred: "gopher"})
	assert.ErrorIs(t, err, llm.ErrUnknownBackend)
}

func TestChooseBackend_NoneRunning(t *testing.T) {
	_, err := ChooseBackend(&scriptedReader{}, NewRenderer(&bytes.Buffer{}, true, true), BackendChoice{Last: "ollama"})
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestChooseModel(t *testing.T) {
	ctx := context.Background()
	out := NewRenderer(&bytes.Buffer{}, true, true)
	client := &stubClient{models: []string{"llama3", "qwen2"}}

	got, err := ChooseModel(ctx, &scriptedReader{}, out, client, "flag-model", "last-model")
	require.NoError(t, err)
	assert.Equal(t, "flag-model", got)

	got, err = ChooseModel(ctx, &scriptedReader{}, out, client, "", "last-model")
	require.NoError(t, err)
	assert.Equal(t, "last-model", got)

	got, err = ChooseModel(ctx, &scriptedReader{lines: []string{"2"}}, out, client, "", "")
	require.NoError(t, err)
	assert.Equal(t, "qwen2", got)

	got, err = ChooseModel(ctx, &scriptedReader{lines: []string{""}}, out, client, "", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3", got)
}

func TestChooseModel_ManualEntry(t *testing.T) {
	ctx := context.Background()
	client := &stubClient{listErr: errors.New("offline")}

	var buf bytes.Buffer
	got, err := ChooseModel(ctx, &scriptedReader{lines: []string{" mistral "}}, NewRenderer(&buf, true, true), client, "", "")
	require.NoError(t, err)
	assert.Equal(t, "mistral", got)
	assert.Contains(t, buf.String(), "Could not list models")

	_, err = ChooseModel(ctx, &scriptedReader{lines: []string{"  "}}, NewRenderer(&buf, true, true), client, "", "")
	assert.ErrorIs(t, err, ErrNoModel)

	_, err = ChooseModel(ctx, &scriptedReader{}, NewRenderer(&buf, true, true), client, "", "")
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input string
		idx   int
		valid bool
	}{
		{"", 0, true},
		{"1", 0, true},
		{" 3 ", 2, true},
		{"4", 0, true},
		{"0", 0, true},
		{"x", 0, false},
	}
	for _, tt := range tests {
		idx, valid := parseChoice(tt.input, 3)
		assert.Equal(t, tt.idx, idx, tt.input)
		assert.Equal(t, tt.valid, valid, tt.input)
	}
}

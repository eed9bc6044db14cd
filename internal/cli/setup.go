package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mfateev/agens/internal/llm"
)

var (
	// ErrNoBackend is returned when no backend was named and none answered.
	ErrNoBackend = errors.New("no model backend is running")
	// ErrNoModel is returned when no model could be chosen.
	ErrNoModel = errors.New("no model selected")
)

// BackendHint is printed alongside ErrNoBackend.
const BackendHint = "Start Ollama (http://127.0.0.1:11434) or LM Studio (http://127.0.0.1:1234), or pass --backend anthropic with ANTHROPIC_API_KEY set."

// BackendChoice is the input to ChooseBackend.
type BackendChoice struct {
	// Preferred is the --backend flag.
	Preferred string
	// Last is the persisted previous choice.
	Last string
	// Detected are the backends that answered a probe, in preference order.
	Detected []llm.Client
	// New builds a client for a named backend that was not detected.
	// Defaults to llm.NewClient.
	New func(name string) (llm.Client, error)
}

// ChooseBackend picks the backend: the flag, then the last choice when it is
// still running, then the only detected backend, then a numbered prompt.
// A flag naming a backend that did not answer is honoured anyway.
func ChooseBackend(in LineReader, out *Renderer, c BackendChoice) (llm.Client, error) {
	if c.Preferred != "" {
		if found := findClient(c.Detected, c.Preferred); found != nil {
			return found, nil
		}
		newClient := c.New
		if newClient == nil {
			newClient = func(name string) (llm.Client, error) { return llm.NewClient(name) }
		}
		return newClient(c.Preferred)
	}

	if len(c.Detected) == 0 {
		return nil, ErrNoBackend
	}
	if c.Last != "" {
		if found := findClient(c.Detected, c.Last); found != nil {
			return found, nil
		}
	}
	if len(c.Detected) == 1 {
		return c.Detected[0], nil
	}

	names := make([]string, len(c.Detected))
	for i, cl := range c.Detected {
		names[i] = cl.Name()
	}
	out.Numbered("Select a backend:", names)
	idx := promptIndex(in, out, "> number: ", len(names))
	return c.Detected[idx], nil
}

func findClient(clients []llm.Client, name string) llm.Client {
	want := llm.NormalizeBackend(name)
	for _, cl := range clients {
		if cl.Name() == want {
			return cl
		}
	}
	return nil
}

// ChooseModel picks the model: the flag, then the last choice, then a
// numbered prompt over the backend's models, then free text when the list
// is unavailable.
func ChooseModel(ctx context.Context, in LineReader, out *Renderer, client llm.Client, preferred, last string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}
	if last != "" {
		return last, nil
	}

	models, err := client.ListModels(ctx)
	if err == nil && len(models) > 0 {
		out.Numbered("Available models:", models)
		idx := promptIndex(in, out, "> model number (Enter for 1): ", len(models))
		return models[idx], nil
	}

	out.Line("Could not list models; enter a name.")
	in.SetPrompt("> model name: ")
	defer in.SetPrompt(InputPrompt)
	line, err := in.Readline()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoModel, err)
	}
	model := strings.TrimSpace(line)
	if model == "" {
		return "", ErrNoModel
	}
	return model, nil
}

// promptIndex asks for a 1-based choice among n and returns it zero-based.
// Empty input picks the first; unparsable input warns and picks the first;
// out-of-range numbers pick the first.
func promptIndex(in LineReader, out *Renderer, prompt string, n int) int {
	in.SetPrompt(prompt)
	defer in.SetPrompt(InputPrompt)
	line, err := in.Readline()
	if err != nil {
		return 0
	}
	idx, valid := parseChoice(line, n)
	if !valid {
		out.Warn("invalid input; using 1")
	}
	return idx
}

func parseChoice(line string, n int) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, true
	}
	v, err := strconv.Atoi(line)
	if err != nil {
		return 0, false
	}
	if v < 1 || v > n {
		return 0, true
	}
	return v - 1, true
}

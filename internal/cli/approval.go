package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mfateev/agens/internal/gate"
)

// LineReader is the REPL's input source. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// ParseConfirmation reports whether line is an explicit yes. Anything other
// than "y" or "yes" (case-insensitive, surrounding space ignored) is a no.
func ParseConfirmation(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// LineConfirmer asks gate questions on the REPL's own input line.
type LineConfirmer struct {
	In  LineReader
	Out *Renderer
	// Restore is the prompt put back after asking.
	Restore string
}

var _ gate.Confirmer = (*LineConfirmer)(nil)

// Confirm implements gate.Confirmer. The preview, when present, is shown
// before the question. Ctrl+C and end of input count as a no.
func (c *LineConfirmer) Confirm(_ context.Context, prompt string, preview gate.Report) (bool, error) {
	if !preview.Empty() {
		c.Out.Entries(preview)
	}
	c.In.SetPrompt(prompt + " [y/N] ")
	defer c.In.SetPrompt(c.Restore)

	line, err := c.In.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return ParseConfirmation(line), nil
}

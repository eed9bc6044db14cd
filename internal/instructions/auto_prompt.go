// Package instructions assembles the system prompts sent to the model.
//
// BuildAutoInstructions is the auto-mode prompt: it teaches the model the two
// file block header forms and attaches the discovered guidance documents.
package instructions

import (
	"fmt"
	"strings"

	"github.com/mfateev/agens/internal/agentdocs"
)

// MaxDocumentChars bounds how much of each guidance document is attached.
// It counts characters (runes), not bytes.
const MaxDocumentChars = 4000

// TruncationMarker follows a document that was cut at MaxDocumentChars.
const TruncationMarker = "\n(additional content exists locally and was not attached)"

const autoPreamble = `You are an autonomous development agent working in the user's project.
Follow the design documents below and carry out their tasks.

When you create or replace a file, emit its complete content in a fenced block
whose header names the path, using either form:

` + "```" + `file: relative/path
<entire file content>
` + "```" + `

` + "```" + `agens:file=relative/path
<entire file content>
` + "```" + `

To replace an existing file, use the same syntax with the full new content.
Other fenced blocks are treated as commentary and are never written.
Keep explanations minimal. Reply in %s.`

// AutoOptions tunes BuildAutoInstructions.
type AutoOptions struct {
	// Language is the configured reply language code ("en", "ja", ...).
	Language string
	// Cwd, when set, is described to the model as the working directory.
	Cwd string
}

// BuildAutoInstructions returns the auto-mode system prompt with each
// document attached in order under a "--- Design document: <path>" label.
func BuildAutoInstructions(docs []agentdocs.Document, opts AutoOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, autoPreamble, LanguageName(opts.Language))

	if note := ComposeWorkingDirNote(opts.Cwd); note != "" {
		b.WriteString("\n\n")
		b.WriteString(note)
	}

	for _, doc := range docs {
		b.WriteString("\n--- Design document: ")
		b.WriteString(doc.Path)
		b.WriteString("\n")

		content, truncated := truncateChars(doc.Content, MaxDocumentChars)
		b.WriteString(content)
		if truncated {
			b.WriteString(TruncationMarker)
		}
	}
	return b.String()
}

// truncateChars returns the first max runes of s and whether anything was cut.
func truncateChars(s string, max int) (string, bool) {
	count := 0
	for i := range s {
		if count == max {
			return s[:i], true
		}
		count++
	}
	return s, false
}

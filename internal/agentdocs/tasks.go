package agentdocs

import (
	"regexp"
	"strings"
)

// numberedItem matches "1. text" and "2) text" list items.
var numberedItem = regexp.MustCompile(`^[0-9]+[.)]\s+.+$`)

// numberedPrefix matches the marker that numberedItem guarantees is present.
var numberedPrefix = regexp.MustCompile(`^[0-9]+[.)]\s+`)

// ExtractTasks returns the list items in body that sit outside fenced code
// regions, in order. Bullets ("- ", "* ") and numbered items ("1. ", "2) ")
// are recognized; their markers are stripped and the remainder trimmed.
// Items with empty text are dropped.
func ExtractTasks(body string) []string {
	var tasks []string
	inCode := false

	for _, raw := range strings.Split(body, "\n") {
		// The fence check uses the untrimmed line, so an indented ``` does
		// not toggle code state.
		if strings.HasPrefix(raw, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}

		line := strings.TrimSpace(raw)
		var task string
		switch {
		case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
			task = strings.TrimSpace(line[2:])
		case numberedItem.MatchString(line):
			task = strings.TrimSpace(numberedPrefix.ReplaceAllString(line, ""))
		default:
			continue
		}
		if task != "" {
			tasks = append(tasks, task)
		}
	}
	return tasks
}

// ExtractAll concatenates the tasks of every document in document order.
// Duplicates across documents are kept.
func ExtractAll(docs []Document) []string {
	var tasks []string
	for _, doc := range docs {
		tasks = append(tasks, ExtractTasks(doc.Content)...)
	}
	return tasks
}

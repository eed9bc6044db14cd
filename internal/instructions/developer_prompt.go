package instructions

import (
	"fmt"
	"strings"
)

// ComposeWorkingDirNote describes where relative file block paths resolve.
// Returns "" when cwd is unset.
func ComposeWorkingDirNote(cwd string) string {
	if cwd == "" {
		return ""
	}
	var parts []string
	parts = append(parts, fmt.Sprintf("Working directory: %s", cwd))
	parts = append(parts, "File block paths are relative to this directory unless absolute.")
	return strings.Join(parts, "\n")
}

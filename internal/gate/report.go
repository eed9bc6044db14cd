package gate

import (
	"fmt"
	"strings"
)

// Status tags one entry of a Report.
type Status string

const (
	StatusPlan      Status = "plan"
	StatusWrite     Status = "write"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// FailureKind says which filesystem step failed for an error entry.
type FailureKind string

const (
	FailureNone  FailureKind = ""
	FailureMkdir FailureKind = "mkdir"
	FailureOpen  FailureKind = "open"
	FailureWrite FailureKind = "write"
)

// Entry is one line of a Report.
type Entry struct {
	Status Status
	// Target is the block path, or the directory for a mkdir failure.
	Target string
	// Bytes is the body length for plan and write entries.
	Bytes int
	Kind  FailureKind
	Err   error
}

// String renders the entry as a status-tagged line.
func (e Entry) String() string {
	switch e.Status {
	case StatusPlan, StatusWrite:
		return fmt.Sprintf("[%s] %s (%d bytes)", e.Status, e.Target, e.Bytes)
	case StatusCancelled:
		return "[cancelled] changes were not applied"
	case StatusError:
		switch e.Kind {
		case FailureMkdir:
			return "[error] Failed to create directory: " + e.Target
		case FailureOpen:
			return "[error] Failed to open file for writing: " + e.Target
		default:
			return "[error] Failed to write file: " + e.Target
		}
	default:
		return fmt.Sprintf("[%s] %s", e.Status, e.Target)
	}
}

// Report is the ordered outcome of a preview or apply pass.
type Report struct {
	Entries []Entry
}

// Empty reports whether the report has no entries.
func (r Report) Empty() bool { return len(r.Entries) == 0 }

// Count returns how many entries have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, e := range r.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// String renders one line per entry, each ending in a newline.
func (r Report) String() string {
	var b strings.Builder
	for _, e := range r.Entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func cancelledReport() Report {
	return Report{Entries: []Entry{{Status: StatusCancelled}}}
}

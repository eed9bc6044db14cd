package gate

import "strings"

// Verdict is the result of checking a command against a Policy.
type Verdict string

const (
	// VerdictAllow means the command may run.
	VerdictAllow Verdict = ""
	// VerdictDeny means a deny pattern matched.
	VerdictDeny Verdict = "deny"
	// VerdictNotAllowed means an allow list exists and no entry matched.
	VerdictNotAllowed Verdict = "not-allowed"
)

// Blocked reports whether the verdict prevents execution.
func (v Verdict) Blocked() bool { return v != VerdictAllow }

// Policy holds the operator's allow and deny substring patterns. Order is
// preserved as entered so the persisted lists round-trip unchanged.
type Policy struct {
	Allow []string
	Deny  []string
}

// Check classifies command. Deny patterns are consulted first, so a command
// matching both lists is denied. An empty allow list permits every command
// that is not denied; a non-empty one, even of blank entries only, must
// match. Empty patterns never match.
func (p *Policy) Check(command string) Verdict {
	if matchAny(p.Deny, command) {
		return VerdictDeny
	}
	if len(p.Allow) > 0 && !matchAny(p.Allow, command) {
		return VerdictNotAllowed
	}
	return VerdictAllow
}

func matchAny(patterns []string, command string) bool {
	for _, pat := range patterns {
		if pat != "" && strings.Contains(command, pat) {
			return true
		}
	}
	return false
}

// AddAllow appends pattern to the allow list.
func (p *Policy) AddAllow(pattern string) { p.Allow = append(p.Allow, pattern) }

// AddDeny appends pattern to the deny list.
func (p *Policy) AddDeny(pattern string) { p.Deny = append(p.Deny, pattern) }

// RemoveAllow drops every allow entry equal to pattern and reports whether
// any was present.
func (p *Policy) RemoveAllow(pattern string) bool {
	var removed bool
	p.Allow, removed = remove(p.Allow, pattern)
	return removed
}

// RemoveDeny drops every deny entry equal to pattern and reports whether any
// was present.
func (p *Policy) RemoveDeny(pattern string) bool {
	var removed bool
	p.Deny, removed = remove(p.Deny, pattern)
	return removed
}

// ClearAllow empties the allow list.
func (p *Policy) ClearAllow() { p.Allow = nil }

// ClearDeny empties the deny list.
func (p *Policy) ClearDeny() { p.Deny = nil }

func remove(list []string, pattern string) ([]string, bool) {
	out := list[:0]
	removed := false
	for _, entry := range list {
		if entry == pattern {
			removed = true
			continue
		}
		out = append(out, entry)
	}
	return out, removed
}

package gate

// Modes are the session's auto-apply switches.
type Modes struct {
	// Auto enables acting on file blocks in replies at all.
	Auto bool
	// Confirm asks the operator before applying.
	Confirm bool
	// DryRun only reports what would be written.
	DryRun bool
}

// Decision is what the gate does with the file blocks of one reply.
type Decision int

const (
	// DecisionIgnore leaves the reply as plain text.
	DecisionIgnore Decision = iota
	// DecisionPreviewOnly reports planned writes without touching disk.
	DecisionPreviewOnly
	// DecisionPreviewThenConfirm previews, then applies only on a yes.
	DecisionPreviewThenConfirm
	// DecisionApplyImmediately writes without asking.
	DecisionApplyImmediately
)

// String returns the decision's log name.
func (d Decision) String() string {
	switch d {
	case DecisionPreviewOnly:
		return "preview-only"
	case DecisionPreviewThenConfirm:
		return "preview-then-confirm"
	case DecisionApplyImmediately:
		return "apply-immediately"
	default:
		return "ignore"
	}
}

// Decide maps the modes to a Decision. Dry run takes precedence over
// confirm.
func Decide(m Modes) Decision {
	switch {
	case !m.Auto:
		return DecisionIgnore
	case m.DryRun:
		return DecisionPreviewOnly
	case m.Confirm:
		return DecisionPreviewThenConfirm
	default:
		return DecisionApplyImmediately
	}
}

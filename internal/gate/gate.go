// Package gate decides whether model-proposed effects take place.
//
// File blocks found in a reply are previewed, confirmed, applied, or ignored
// according to the session's modes. Operator commands are checked against
// the allow/deny policy before anything runs. Every mutation passes through
// this package; nothing else writes files or starts processes on the
// model's behalf.
package gate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfateev/agens/internal/blocks"
	"github.com/mfateev/agens/internal/runner"
)

// Session is the per-REPL state the gate consults. The caller owns it and
// passes it to every call.
type Session struct {
	ID     string
	Policy Policy
	Modes  Modes
}

// Confirmer asks the operator a yes/no question. preview is the report the
// operator is deciding on; it is empty for command confirmations.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string, preview Report) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string, preview Report) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string, preview Report) (bool, error) {
	return f(ctx, prompt, preview)
}

// CommandRunner executes an approved command.
type CommandRunner interface {
	Run(ctx context.Context, inv runner.Invocation) (runner.Result, error)
}

// Recorder persists gate outcomes. Implementations should not fail the
// caller; errors are logged and dropped.
type Recorder interface {
	RecordApply(ctx context.Context, sessionID string, decision Decision, report Report) error
	RecordCommand(ctx context.Context, sessionID string, outcome CommandOutcome) error
}

// Gate applies a Session's policy and modes to replies and commands.
type Gate struct {
	fs        FileSystem
	confirmer Confirmer
	runner    CommandRunner
	recorder  Recorder
	logger    *zap.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fs FileSystem) Option { return func(g *Gate) { g.fs = fs } }

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) Option { return func(g *Gate) { g.recorder = r } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(g *Gate) { g.logger = l } }

// New creates a Gate.
func New(confirmer Confirmer, cmdRunner CommandRunner, opts ...Option) *Gate {
	g := &Gate{
		fs:        OSFileSystem{},
		confirmer: confirmer,
		runner:    cmdRunner,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ---------------------------------------------------------------------------
// File blocks
// ---------------------------------------------------------------------------

// ApplyOutcome describes what HandleReply did with one reply.
type ApplyOutcome struct {
	Decision Decision
	Blocks   []blocks.Block
	// Preview is set for every decision except Ignore when blocks exist.
	Preview Report
	// Result is the apply report, or a single cancelled entry when the
	// operator declined. Empty for preview-only.
	Result  Report
	Applied bool
}

// HandleReply extracts file blocks from reply and acts on them according to
// session.Modes. A reply without blocks never prompts. The returned error is
// only set when confirmation itself failed (for example, input closed).
func (g *Gate) HandleReply(ctx context.Context, session *Session, reply string) (ApplyOutcome, error) {
	decision := Decide(session.Modes)
	out := ApplyOutcome{Decision: decision}
	if decision == DecisionIgnore {
		return out, nil
	}

	out.Blocks = blocks.Extract(reply)
	if len(out.Blocks) == 0 {
		return out, nil
	}
	out.Preview = Preview(out.Blocks)

	switch decision {
	case DecisionPreviewOnly:
		g.logReport(session, decision, out.Preview)
		g.record(ctx, session, decision, out.Preview)
		return out, nil

	case DecisionPreviewThenConfirm:
		ok, err := g.confirmer.Confirm(ctx, "Apply these changes?", out.Preview)
		if err != nil {
			return out, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			out.Result = cancelledReport()
			g.logReport(session, decision, out.Result)
			g.record(ctx, session, decision, out.Result)
			return out, nil
		}
	}

	out.Result = Apply(g.fs, out.Blocks)
	out.Applied = true
	g.logReport(session, decision, out.Result)
	g.record(ctx, session, decision, out.Result)
	return out, nil
}

func (g *Gate) logReport(session *Session, decision Decision, r Report) {
	for _, e := range r.Entries {
		fields := []zap.Field{
			zap.String("session", session.ID),
			zap.String("decision", decision.String()),
			zap.String("status", string(e.Status)),
			zap.String("target", e.Target),
			zap.Int("bytes", e.Bytes),
		}
		if e.Status == StatusError {
			fields = append(fields, zap.String("kind", string(e.Kind)), zap.Error(e.Err))
			g.logger.Warn("file block failed", fields...)
			continue
		}
		g.logger.Info("file block", fields...)
	}
}

func (g *Gate) record(ctx context.Context, session *Session, decision Decision, r Report) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordApply(ctx, session.ID, decision, r); err != nil {
		g.logger.Warn("failed to record apply", zap.String("session", session.ID), zap.Error(err))
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// CommandRequest is an operator command entered at the REPL.
type CommandRequest struct {
	Command string
	// Forced skips the confirmation prompt but never the policy check.
	Forced bool
	// Direct runs the program without a shell.
	Direct bool
}

// CommandOutcome reports what happened to a CommandRequest.
type CommandOutcome struct {
	Request  CommandRequest
	Verdict  Verdict
	Declined bool
	Executed bool
	Result   runner.Result
	// StartErr is set when the command was cleared to run but could not be
	// started.
	StartErr error
}

// Blocked reports whether the policy stopped the command.
func (o CommandOutcome) Blocked() bool { return o.Verdict.Blocked() }

// Hint is the remediation shown for a blocked command.
func (o CommandOutcome) Hint() string {
	switch o.Verdict {
	case VerdictDeny:
		return "the command matches a deny pattern; see /deny list, or use /allow add <pattern> for commands you do want to run"
	case VerdictNotAllowed:
		return "the command is not on the allow list; use /allow add <pattern>"
	default:
		return ""
	}
}

// RunCommand checks req against session.Policy, asks for confirmation unless
// req.Forced, and runs the command. A blocked or declined command never runs.
// Errors come from the confirmer or from a command that could not be started.
func (g *Gate) RunCommand(ctx context.Context, session *Session, req CommandRequest) (CommandOutcome, error) {
	out := CommandOutcome{Request: req, Verdict: session.Policy.Check(req.Command)}
	logger := g.logger.With(
		zap.String("session", session.ID),
		zap.String("command", req.Command),
		zap.Bool("forced", req.Forced),
	)

	if out.Blocked() {
		logger.Info("command blocked", zap.String("verdict", string(out.Verdict)))
		g.recordCommand(ctx, session, out)
		return out, nil
	}

	if !req.Forced {
		ok, err := g.confirmer.Confirm(ctx, fmt.Sprintf("Run %q?", req.Command), Report{})
		if err != nil {
			return out, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			out.Declined = true
			logger.Info("command declined")
			g.recordCommand(ctx, session, out)
			return out, nil
		}
	}

	res, err := g.runner.Run(ctx, runner.Invocation{Command: req.Command, Direct: req.Direct})
	if err != nil {
		logger.Warn("command failed to run", zap.Error(err))
		out.StartErr = err
		g.recordCommand(ctx, session, out)
		return out, err
	}
	out.Executed = true
	out.Result = res
	logger.Info("command finished", zap.Int("exit_code", res.ExitCode), zap.Int("output_bytes", len(res.Output)))
	g.recordCommand(ctx, session, out)
	return out, nil
}

func (g *Gate) recordCommand(ctx context.Context, session *Session, out CommandOutcome) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.RecordCommand(ctx, session.ID, out); err != nil {
		g.logger.Warn("failed to record command", zap.String("session", session.ID), zap.Error(err))
	}
}

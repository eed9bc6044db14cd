package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mfateev/agens/internal/agentdocs"
	"github.com/mfateev/agens/internal/config"
	"github.com/mfateev/agens/internal/gate"
	"github.com/mfateev/agens/internal/instructions"
	"github.com/mfateev/agens/internal/journal"
	"github.com/mfateev/agens/internal/llm"
	"github.com/mfateev/agens/internal/runner"
	"github.com/mfateev/agens/internal/websearch"
)

// InputPrompt is shown while waiting for operator input.
const InputPrompt = "You> "

// Config holds CLI flags that outlive startup.
type Config struct {
	// ConfigPath is where the persisted config is saved and reloaded.
	ConfigPath string
	NoMarkdown bool
	NoColor    bool
	// Root is the directory scanned for design documents and candidate
	// files. Empty means the working directory.
	Root string
}

// Searcher backs /web.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]websearch.Result, error)
}

// History backs /history.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

// App is the interactive chat REPL.
type App struct {
	config Config
	store  *config.Config
	in     LineReader
	out    *Renderer
	logger *zap.Logger

	client llm.Client
	model  string
	tuning llm.Tuning
	system string

	gate     *gate.Gate
	session  *gate.Session
	runner   gate.CommandRunner
	fs       gate.FileSystem
	recorder gate.Recorder
	history  History
	search   Searcher

	docs   []agentdocs.Document
	loaded bool
	quit   bool
}

// Option configures an App.
type Option func(*App)

// WithTuning sets the initial inference parameters.
func WithTuning(t llm.Tuning) Option { return func(a *App) { a.tuning = t } }

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option { return func(a *App) { a.logger = l } }

// WithRunner replaces the command runner used by /sh and /prog.
func WithRunner(r gate.CommandRunner) Option { return func(a *App) { a.runner = r } }

// WithFileSystem replaces the filesystem file blocks are written to.
func WithFileSystem(fs gate.FileSystem) Option { return func(a *App) { a.fs = fs } }

// WithSearcher replaces the /web backend.
func WithSearcher(s Searcher) Option { return func(a *App) { a.search = s } }

// WithSessionID fixes the session identifier; the default is a new UUID.
func WithSessionID(id string) Option { return func(a *App) { a.session.ID = id } }

// WithJournal records gate outcomes to j and serves /history from it. A nil
// journal leaves both disabled.
func WithJournal(j *journal.Journal) Option {
	return func(a *App) {
		if j == nil {
			return
		}
		a.recorder = j
		a.history = j
	}
}

// NewApp wires a REPL around an already chosen backend and model. store is
// the loaded persisted config; the App updates and saves it as settings
// change.
func NewApp(cfg Config, store *config.Config, in LineReader, out io.Writer, client llm.Client, model string, opts ...Option) *App {
	a := &App{
		config:  cfg,
		store:   store,
		in:      in,
		logger:  zap.NewNop(),
		client:  client,
		model:   model,
		tuning:  llm.DefaultTuning(),
		session: &gate.Session{ID: uuid.NewString()},
		search:  websearch.New("", nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = runner.New()
	}
	a.out = NewRenderer(out, cfg.NoColor, cfg.NoMarkdown)
	a.syncFromStore()
	a.system = instructions.DefaultChatInstructions(store.Language)

	gateOpts := []gate.Option{gate.WithLogger(a.logger)}
	if a.fs != nil {
		gateOpts = append(gateOpts, gate.WithFileSystem(a.fs))
	}
	if a.recorder != nil {
		gateOpts = append(gateOpts, gate.WithRecorder(a.recorder))
	}
	confirmer := &LineConfirmer{In: in, Out: a.out, Restore: InputPrompt}
	a.gate = gate.New(confirmer, a.runner, gateOpts...)
	return a
}

// Session returns the live gate session.
func (a *App) Session() *gate.Session { return a.session }

// Model returns the active model name.
func (a *App) Model() string { return a.model }

// Tuning returns the active inference parameters.
func (a *App) Tuning() llm.Tuning { return a.tuning }

// Renderer returns the App's output renderer.
func (a *App) Renderer() *Renderer { return a.out }

// syncFromStore copies the persisted policy and apply modes into the
// session, keeping the current auto switch.
func (a *App) syncFromStore() {
	a.session.Policy = gate.Policy{
		Allow: append([]string(nil), a.store.AllowPatterns...),
		Deny:  append([]string(nil), a.store.DenyPatterns...),
	}
	a.session.Modes.Confirm = a.store.AutoConfirm
	a.session.Modes.DryRun = a.store.AutoDryRun
}

// syncToStore copies the session policy back for persisting.
func (a *App) syncToStore() {
	a.store.AllowPatterns = append([]string{}, a.session.Policy.Allow...)
	a.store.DenyPatterns = append([]string{}, a.session.Policy.Deny...)
	a.store.AutoConfirm = a.session.Modes.Confirm
	a.store.AutoDryRun = a.session.Modes.DryRun
}

func (a *App) save() {
	a.syncToStore()
	if a.config.ConfigPath == "" {
		return
	}
	if err := config.Save(a.config.ConfigPath, a.store); err != nil {
		a.logger.Warn("failed to save config", zap.String("path", a.config.ConfigPath), zap.Error(err))
		a.out.Warn("settings were not saved: %v", err)
	}
}

func (a *App) root() string {
	if a.config.Root != "" {
		return a.config.Root
	}
	return "."
}

// Run reads lines until /exit, /quit or end of input. Ctrl+C at the prompt
// clears the line; during a model call it cancels the call.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("session started",
		zap.String("session", a.session.ID),
		zap.String("backend", a.client.Name()),
		zap.String("model", a.model))
	a.out.Line("Chat started. /help lists commands, /exit quits.")

	for !a.quit {
		a.in.SetPrompt(InputPrompt)
		line, err := a.in.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a.dispatch(ctx, line)
	}

	a.logger.Info("session ended", zap.String("session", a.session.ID))
	a.out.Line("Bye.")
	return nil
}

// Ask sends a single prompt with the plain chat instructions and returns
// the reply. File blocks are not acted on.
func (a *App) Ask(ctx context.Context, prompt string) (string, error) {
	return a.complete(ctx, prompt)
}

func (a *App) complete(ctx context.Context, user string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: a.system},
		{Role: llm.RoleUser, Content: user},
	}
	reply, err := a.client.Chat(ctx, a.model, messages, a.tuning)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", llm.ErrNoReply
	}
	return reply, nil
}

// chatTurn sends one operator message, hands the reply to the gate, then
// shows what the gate did followed by the reply itself.
func (a *App) chatTurn(ctx context.Context, line string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reply, err := a.complete(ctx, line)
	if err != nil {
		a.logger.Warn("chat failed",
			zap.String("session", a.session.ID),
			zap.String("backend", a.client.Name()),
			zap.String("model", a.model),
			zap.Error(err))
		if errors.Is(err, context.Canceled) {
			a.out.Warn("request cancelled")
			return
		}
		a.out.Error("could not get a reply: %v", err)
		return
	}

	outcome, err := a.gate.HandleReply(ctx, a.session, reply)
	if err != nil {
		a.out.Error("%v", err)
	}
	a.out.Outcome(outcome)
	a.out.Reply(reply)
}

// ask shows prompt on the input line and returns the trimmed answer. ok is
// false when input was interrupted or closed.
func (a *App) ask(prompt string) (answer string, ok bool) {
	a.in.SetPrompt(prompt)
	defer a.in.SetPrompt(InputPrompt)
	line, err := a.in.Readline()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// loadDocs scans for design documents on first use or when rescan is set.
func (a *App) loadDocs(rescan bool) []agentdocs.Document {
	if !a.loaded || rescan {
		a.docs = agentdocs.ScanWithLogger(a.root(), a.logger)
		a.loaded = true
	}
	return a.docs
}

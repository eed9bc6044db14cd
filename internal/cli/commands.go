package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mfateev/agens/internal/agentdocs"
	"github.com/mfateev/agens/internal/config"
	"github.com/mfateev/agens/internal/filefinder"
	"github.com/mfateev/agens/internal/gate"
	"github.com/mfateev/agens/internal/instructions"
)

const (
	webResults    = 6
	fileHits      = 10
	historyLength = 20
)

// command is one slash command.
type command struct {
	names []string
	usage string
	run   func(a *App, ctx context.Context, name, args string)
}

func commandTable() []command {
	return []command{
		{[]string{"/exit", "/quit"}, "/exit | /quit            leave", (*App).cmdExit},
		{[]string{"/help"}, "/help                    show this list", (*App).cmdHelp},
		{[]string{"/model"}, "/model [list|<name>]     show or switch the model", (*App).cmdModel},
		{[]string{"/config"}, "/config path|save|reload manage the settings file", (*App).cmdConfig},
		{[]string{"/cd"}, "/cd [dir]                show or change the working directory", (*App).cmdCd},
		{[]string{"/allow", "/deny"}, "/allow|/deny list|add <pat>|rm <pat>|clear", (*App).cmdPolicy},
		{[]string{"/agents"}, "/agents [rescan]         list design documents", (*App).cmdAgents},
		{[]string{"/plan"}, "/plan                    list tasks from design documents", (*App).cmdPlan},
		{[]string{"/auto"}, "/auto [on|off|status|confirm [on|off]|dry [on|off]]", (*App).cmdAuto},
		{[]string{"/sh!", "/prog!"}, "/sh! <cmd> | /prog! <prog> [args]  run without asking", (*App).cmdRun},
		{[]string{"/sh", "/prog"}, "/sh <cmd> | /prog <prog> [args]    run after confirming; /prog splits args on whitespace, no quoting", (*App).cmdRun},
		{[]string{"/web"}, "/web <query>             search the web", (*App).cmdWeb},
		{[]string{"/target", "/files"}, "/target <keywords>       find relevant files", (*App).cmdTarget},
		{[]string{"/temp", "/top_p", "/ctx", "/max"}, "/temp 0-2 | /top_p 0-1 | /ctx 512-131072 | /max 1-8192", (*App).cmdTune},
		{[]string{"/history"}, "/history [n]             show recent file writes and commands", (*App).cmdHistory},
	}
}

// dispatch runs a slash command, or treats line as a chat message when its
// first word is not a known command.
func (a *App) dispatch(ctx context.Context, line string) {
	name := line
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name = line[:i]
	}
	args := strings.TrimSpace(line[len(name):])

	for _, c := range commandTable() {
		for _, n := range c.names {
			if n == name {
				a.logger.Debug("command", zap.String("session", a.session.ID), zap.String("name", name))
				c.run(a, ctx, name, args)
				return
			}
		}
	}
	a.chatTurn(ctx, line)
}

func (a *App) cmdExit(context.Context, string, string) { a.quit = true }

func (a *App) cmdHelp(context.Context, string, string) {
	a.out.Line("Commands:")
	for _, c := range commandTable() {
		a.out.Line("  %s", c.usage)
	}
	a.out.Line("Anything else is sent to the model.")
}

// ---------------------------------------------------------------------------
// Model and settings
// ---------------------------------------------------------------------------

func (a *App) cmdModel(ctx context.Context, _, args string) {
	if args != "" && args != "list" && args != "?" {
		a.setModel(args)
		return
	}

	models, err := a.client.ListModels(ctx)
	if err != nil || len(models) == 0 {
		a.out.Warn("could not list models; use /model <name>")
		return
	}
	a.out.Numbered("Available models:", models)
	sel, ok := a.ask("Number or name: ")
	if !ok || sel == "" {
		a.out.Info("model unchanged")
		return
	}
	if isDigits(sel) {
		idx, err := strconv.Atoi(sel)
		if err != nil || idx < 1 || idx > len(models) {
			idx = 1
		}
		sel = models[idx-1]
	}
	a.setModel(sel)
}

func (a *App) setModel(model string) {
	a.model = model
	a.store.LastModel = model
	a.save()
	a.out.Line("Model: %s", model)
}

func (a *App) cmdConfig(_ context.Context, _, args string) {
	switch args {
	case "path":
		a.out.Line("%s", a.config.ConfigPath)
	case "save":
		a.save()
		a.out.Info("saved %s", a.config.ConfigPath)
	case "reload":
		cfg, err := config.Load(a.config.ConfigPath)
		if err != nil {
			a.out.Error("reload failed: %v", err)
			return
		}
		cfg.ApplyEnv(os.LookupEnv)
		a.store = cfg
		a.syncFromStore()
		if !a.session.Modes.Auto {
			a.system = instructions.DefaultChatInstructions(cfg.Language)
		}
		a.out.Info("reloaded %s", a.config.ConfigPath)
	default:
		a.out.Line("usage: /config path|save|reload")
	}
}

func (a *App) cmdCd(_ context.Context, _, args string) {
	if args == "" {
		wd, err := os.Getwd()
		if err != nil {
			a.out.Error("%v", err)
			return
		}
		a.out.Line("%s", wd)
		return
	}

	dir := expandHome(args)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		a.out.Error("directory not found: %s", dir)
		return
	}
	if err := os.Chdir(dir); err != nil {
		a.out.Error("failed to change directory: %v", err)
		return
	}
	wd, _ := os.Getwd()
	a.loaded = false
	a.store.LastCwd = wd
	a.save()
	a.out.Line("cwd: %s", wd)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func (a *App) cmdPolicy(_ context.Context, name, args string) {
	allow := name == "/allow"
	label := "Deny"
	if allow {
		label = "Allow"
	}
	list := func() []string {
		if allow {
			return a.session.Policy.Allow
		}
		return a.session.Policy.Deny
	}

	sub, pattern := splitFirst(args)
	switch sub {
	case "", "list":
		a.out.Bullets(label+" patterns:", list())
		return
	case "add":
		if pattern == "" {
			break
		}
		if allow {
			a.session.Policy.AddAllow(pattern)
		} else {
			a.session.Policy.AddDeny(pattern)
		}
		a.save()
		a.out.Info("%s pattern added: %s", strings.ToLower(label), pattern)
		return
	case "rm", "remove":
		if pattern == "" {
			break
		}
		var removed bool
		if allow {
			removed = a.session.Policy.RemoveAllow(pattern)
		} else {
			removed = a.session.Policy.RemoveDeny(pattern)
		}
		a.save()
		if removed {
			a.out.Info("removed: %s", pattern)
		} else {
			a.out.Warn("no such pattern: %s", pattern)
		}
		return
	case "clear":
		if allow {
			a.session.Policy.ClearAllow()
		} else {
			a.session.Policy.ClearDeny()
		}
		a.save()
		a.out.Info("%s list cleared", strings.ToLower(label))
		return
	}
	a.out.Line("usage: %s list|add <pattern>|rm <pattern>|clear", name)
}

// splitFirst returns the first word of s and the trimmed remainder, which
// keeps its inner spacing.
func splitFirst(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// ---------------------------------------------------------------------------
// Design documents and auto mode
// ---------------------------------------------------------------------------

func (a *App) cmdAgents(_ context.Context, _, args string) {
	docs := a.loadDocs(args == "rescan")
	if len(docs) == 0 {
		a.out.Line("No AGENTS.md or AGENT.md found. Place one at the project root.")
		return
	}
	paths := make([]string, len(docs))
	for i, d := range docs {
		paths[i] = d.Path
	}
	a.out.Numbered("Design documents:", paths)
}

func (a *App) cmdPlan(context.Context, string, string) {
	tasks := agentdocs.ExtractAll(a.loadDocs(false))
	if len(tasks) == 0 {
		a.out.Line("No explicit tasks found in the design documents.")
		return
	}
	a.out.Bullets("Plan (extracted tasks):", tasks)
}

func (a *App) cmdAuto(_ context.Context, _, args string) {
	sub, rest := splitFirst(args)
	modes := &a.session.Modes
	switch sub {
	case "off", "stop":
		modes.Auto = false
		a.system = instructions.DefaultChatInstructions(a.store.Language)
		a.out.Line("Auto mode: OFF")
	case "confirm":
		modes.Confirm = !isOff(rest)
		a.save()
		a.out.Line("Auto confirm: %s", onOff(modes.Confirm))
		a.autoHint()
	case "dry":
		modes.DryRun = !isOff(rest)
		a.save()
		a.out.Line("Auto dry run: %s", onOff(modes.DryRun))
		a.autoHint()
	case "status":
		a.out.Line("Auto mode: %s, confirm=%s, dry=%s", onOff(modes.Auto), onOff(modes.Confirm), onOff(modes.DryRun))
	case "", "on":
		docs := a.loadDocs(false)
		if len(docs) == 0 {
			a.out.Error("no AGENTS.md or AGENT.md found; see /agents")
			return
		}
		wd, _ := os.Getwd()
		a.system = instructions.BuildAutoInstructions(docs, instructions.AutoOptions{
			Language: a.store.Language,
			Cwd:      wd,
		})
		modes.Auto = true
		mode := "apply"
		if modes.DryRun {
			mode = "dry"
		}
		a.logger.Info("auto mode on",
			zap.String("session", a.session.ID),
			zap.Int("documents", len(docs)),
			zap.Bool("confirm", modes.Confirm),
			zap.Bool("dry_run", modes.DryRun))
		a.out.Line("Auto mode: ON (%s, confirm=%s)", mode, onOff(modes.Confirm))
	default:
		a.out.Line("usage: /auto [on|off|status|confirm [on|off]|dry [on|off]]")
	}
}

func (a *App) autoHint() {
	if !a.session.Modes.Auto {
		a.out.Line("Hint: turn auto mode on with /auto.")
	}
}

func isOff(s string) bool { return s == "off" || s == "disable" }

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// ---------------------------------------------------------------------------
// Commands, search and tuning
// ---------------------------------------------------------------------------

func (a *App) cmdRun(ctx context.Context, name, args string) {
	if args == "" {
		a.out.Line("usage: %s <command>", name)
		return
	}
	req := gate.CommandRequest{
		Command: args,
		Forced:  strings.HasSuffix(name, "!"),
		Direct:  strings.HasPrefix(name, "/prog"),
	}
	out, err := a.gate.RunCommand(ctx, a.session, req)
	if err != nil {
		a.out.Error("%v", err)
		return
	}
	a.out.Command(out)
}

func (a *App) cmdWeb(ctx context.Context, _, args string) {
	if args == "" {
		a.out.Line("usage: /web <query>")
		return
	}
	results, err := a.search.Search(ctx, args, webResults)
	if err != nil {
		a.out.Error("search failed: %v", err)
		return
	}
	if len(results) == 0 {
		a.out.Line("No results.")
		return
	}
	a.out.SearchResults(results)
}

func (a *App) cmdTarget(_ context.Context, name, args string) {
	if args == "" {
		a.out.Line("usage: %s <keywords>", name)
		return
	}
	hits := filefinder.Find(a.root(), args, fileHits)
	if len(hits) == 0 {
		a.out.Line("No matching files.")
		return
	}
	a.out.Hits(hits)
}

func (a *App) cmdTune(_ context.Context, name, args string) {
	arg, _ := splitFirst(args)
	switch name {
	case "/temp":
		if v, err := strconv.ParseFloat(arg, 64); err == nil && v >= 0 && v <= 2 {
			a.tuning.Temperature = v
			a.out.Line("temperature=%g", v)
			return
		}
		a.out.Error("temperature must be between 0.0 and 2.0")
	case "/top_p":
		if v, err := strconv.ParseFloat(arg, 64); err == nil && v >= 0 && v <= 1 {
			a.tuning.TopP = v
			a.out.Line("top_p=%g", v)
			return
		}
		a.out.Error("top_p must be between 0.0 and 1.0")
	case "/ctx":
		if v, err := strconv.Atoi(arg); err == nil && v >= 512 && v <= 131072 {
			a.tuning.Context = v
			a.out.Line("context=%d", v)
			return
		}
		a.out.Error("context must be between 512 and 131072")
	case "/max":
		if v, err := strconv.Atoi(arg); err == nil && v >= 1 && v <= 8192 {
			a.tuning.MaxTokens = v
			a.out.Line("max_tokens=%d", v)
			return
		}
		a.out.Error("max_tokens must be between 1 and 8192")
	}
}

func (a *App) cmdHistory(ctx context.Context, _, args string) {
	if a.history == nil {
		a.out.Warn("the journal is not available in this session")
		return
	}
	n := historyLength
	if args != "" {
		v, err := strconv.Atoi(args)
		if err != nil || v < 1 {
			a.out.Line("usage: /history [n]")
			return
		}
		n = v
	}
	events, err := a.history.Recent(ctx, n)
	if err != nil {
		a.out.Error("failed to read the journal: %v", err)
		return
	}
	a.out.History(events)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// HelpText renders the command usage list.
func HelpText() string {
	var b strings.Builder
	for _, c := range commandTable() {
		fmt.Fprintf(&b, "  %s\n", c.usage)
	}
	return b.String()
}

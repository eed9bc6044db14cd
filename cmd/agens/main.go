// agens is a local chat agent for LLM backends running on this machine.
//
// It detects Ollama or LM Studio, probes RAM and GPU to pick inference
// tuning, and opens a REPL. In auto mode, file blocks in replies are
// previewed, confirmed or written according to the session's switches, and
// /sh and /prog commands pass an allow/deny policy before running.
//
// Usage:
//
//	agens                          Start the REPL
//	agens -p "summarize AGENTS.md" One-shot prompt, reply on stdout
//	agens -b lmstudio -m qwen2     Pick backend and model up front
//	agens agents                   List discovered design documents
//	agens plan                     Print tasks extracted from them
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mfateev/agens/internal/agentdocs"
	"github.com/mfateev/agens/internal/cli"
	"github.com/mfateev/agens/internal/config"
	"github.com/mfateev/agens/internal/journal"
	"github.com/mfateev/agens/internal/llm"
	"github.com/mfateev/agens/internal/logging"
	"github.com/mfateev/agens/internal/runner"
	"github.com/mfateev/agens/internal/sysinfo"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

var (
	backendFlag string
	modelFlag   string
	promptFlag  string
	noMarkdown  bool
	noColor     bool
	verbose     bool
	configPath  string
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

func (e exitError) Unwrap() error { return e.err }

var rootCmd = &cobra.Command{
	Use:   "agens",
	Short: "Local LLM chat agent with gated file writes and commands",
	Long: `agens chats with a model served by Ollama or LM Studio on this machine.

In auto mode the model is given the project's AGENTS.md documents and may
answer with file blocks; these are previewed, confirmed or applied according
to /auto confirm and /auto dry. Commands run with /sh or /prog are checked
against the allow and deny lists first.

REPL commands:
` + cli.HelpText(),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List AGENTS.md and AGENT.md files under the working directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		docs := agentdocs.Scan(".")
		if len(docs) == 0 {
			return errors.New("no AGENTS.md or AGENT.md found")
		}
		paths := make([]string, len(docs))
		for i, d := range docs {
			paths[i] = d.Path
		}
		newRenderer(cmd).Numbered("Design documents:", paths)
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the task items listed in the design documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks := agentdocs.ExtractAll(agentdocs.Scan("."))
		if len(tasks) == 0 {
			return errors.New("no explicit tasks found in the design documents")
		}
		newRenderer(cmd).Bullets("Plan (extracted tasks):", tasks)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "agens", version)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&backendFlag, "backend", "b", "", "Backend: ollama, lmstudio or anthropic")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model name")
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Send one prompt, print the reply and exit")
	rootCmd.PersistentFlags().BoolVar(&noMarkdown, "no-markdown", false, "Disable markdown rendering")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/agens/config.yaml)")

	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "agens:", err)
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func colorDisabled() bool {
	return noColor || !term.IsTerminal(int(os.Stdout.Fd()))
}

func newRenderer(cmd *cobra.Command) *cli.Renderer {
	return cli.NewRenderer(cmd.OutOrStdout(), colorDisabled(), noMarkdown)
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	store, err := config.Load(path)
	if err != nil {
		return err
	}
	store.ApplyEnv(os.LookupEnv)

	stateDir := config.StateDir()
	logger, err := logging.New(logging.DefaultPath(stateDir), verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "agens: warning:", err)
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	sessionID := uuid.NewString()
	interactive := promptFlag == ""
	out := cli.NewRenderer(os.Stdout, colorDisabled(), noMarkdown)

	if store.LastCwd != "" {
		if err := os.Chdir(store.LastCwd); err != nil {
			logger.Warn("failed to restore working directory", zap.String("dir", store.LastCwd), zap.Error(err))
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cli.InputPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     filepath.Join(stateDir, "history"),
	})
	if err != nil {
		return fmt.Errorf("failed to init readline: %w", err)
	}
	defer rl.Close()

	cmdRunner := runner.New()
	info := sysinfo.Detect(ctx, sysinfo.ShellProber{Runner: cmdRunner})
	tuning := sysinfo.DecideTuning(info)
	logger.Info("system detected",
		zap.String("os", info.OS),
		zap.Uint64("ram_bytes", info.RAMBytes),
		zap.Uint64("vram_mb", info.VRAMMB),
		zap.String("gpu", info.GPUName),
		zap.Int("context", tuning.Context),
		zap.Int("max_tokens", tuning.MaxTokens),
		zap.Int("gpu_layers", tuning.GPULayers))
	if interactive {
		out.Line("Starting agens %s", version)
		out.Banner(info, store.UnifiedGPURatio, tuning)
	}

	detected := llm.Detect(ctx, llm.NewOllamaClient(), llm.NewLMStudioClient())
	client, err := cli.ChooseBackend(rl, out, cli.BackendChoice{
		Preferred: backendFlag,
		Last:      store.LastBackend,
		Detected:  detected,
	})
	if errors.Is(err, cli.ErrNoBackend) {
		return fmt.Errorf("%w\n%s", err, cli.BackendHint)
	}
	if err != nil {
		return err
	}

	model, err := cli.ChooseModel(ctx, rl, out, client, modelFlag, store.LastModel)
	if err != nil {
		return err
	}
	store.LastBackend = client.Name()
	store.LastModel = model
	if err := config.Save(path, store); err != nil {
		logger.Warn("failed to save config", zap.String("path", path), zap.Error(err))
	}
	logger.Info("backend selected",
		zap.String("session", sessionID),
		zap.String("backend", client.Name()),
		zap.String("model", model))
	if interactive {
		out.Line("Backend: %s, model: %s", client.Name(), model)
	}

	var j *journal.Journal
	if opened, err := journal.Open(journal.DefaultPath(stateDir)); err != nil {
		logger.Warn("journal unavailable", zap.Error(err))
		if interactive {
			out.Warn("journal unavailable, activity will not be recorded: %v", err)
		}
	} else {
		j = opened
		defer j.Close()
	}

	app := cli.NewApp(
		cli.Config{ConfigPath: path, NoMarkdown: noMarkdown, NoColor: colorDisabled()},
		store, rl, os.Stdout, client, model,
		cli.WithTuning(tuning),
		cli.WithLogger(logger),
		cli.WithRunner(cmdRunner),
		cli.WithJournal(j),
		cli.WithSessionID(sessionID),
	)

	if !interactive {
		reply, err := app.Ask(ctx, promptFlag)
		if err != nil {
			logger.Warn("one-shot prompt failed", zap.String("session", sessionID), zap.Error(err))
			return exitError{code: 2, err: fmt.Errorf("inference failed: %w", err)}
		}
		fmt.Println(reply)
		return nil
	}
	return app.Run(ctx)
}

package runner

import (
	"os"
	"os/exec"
	"path/filepath"
)

// ShellType enumerates the shell flavours used for /sh commands.
type ShellType int

const (
	ShellTypeBash ShellType = iota
	ShellTypeZsh
	ShellTypeSh
)

// Shell is a detected shell binary.
type Shell struct {
	Type ShellType
	Path string
}

// Name returns the short name of the shell ("bash", "zsh", "sh").
func (s *Shell) Name() string {
	switch s.Type {
	case ShellTypeBash:
		return "bash"
	case ShellTypeZsh:
		return "zsh"
	default:
		return "sh"
	}
}

// ExecArgs builds the argument vector that runs command through this shell.
// Commands run non-login (-c) so profile output does not leak into results.
func (s *Shell) ExecArgs(command string) []string {
	return []string{s.Path, "-c", command}
}

// DetectShellType maps a shell binary path (or bare name) to a ShellType.
func DetectShellType(shellPath string) (ShellType, bool) {
	switch filepath.Base(shellPath) {
	case "bash":
		return ShellTypeBash, true
	case "zsh":
		return ShellTypeZsh, true
	case "sh":
		return ShellTypeSh, true
	default:
		return 0, false
	}
}

// lookPath is overridden in tests.
var lookPath = exec.LookPath

// DetectUserShell returns the shell named by $SHELL when it is recognized,
// otherwise bash or sh from $PATH, otherwise /bin/sh.
func DetectUserShell() *Shell {
	if env := os.Getenv("SHELL"); env != "" {
		if st, ok := DetectShellType(env); ok {
			return &Shell{Type: st, Path: env}
		}
	}

	for _, candidate := range []struct {
		name string
		st   ShellType
	}{
		{"bash", ShellTypeBash},
		{"sh", ShellTypeSh},
	} {
		if p, err := lookPath(candidate.name); err == nil {
			return &Shell{Type: candidate.st, Path: p}
		}
	}

	return &Shell{Type: ShellTypeSh, Path: "/bin/sh"}
}

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func shRunner() *Runner {
	return New(WithShell(&Shell{Type: ShellTypeSh, Path: "/bin/sh"}))
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_Success(t *testing.T) {
	res, err := shRunner().Run(context.Background(), Invocation{Command: "echo hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello\n", string(res.Output))
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := shRunner().Run(context.Background(), Invocation{Command: "echo oops >&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", string(res.Output))
}

func TestRun_CombinesStdoutAndStderr(t *testing.T) {
	res, err := shRunner().Run(context.Background(), Invocation{Command: "echo out; echo err >&2"})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "out\n")
	assert.Contains(t, string(res.Output), "err\n")
}

func TestRun_DirectSkipsShell(t *testing.T) {
	res, err := shRunner().Run(context.Background(), Invocation{Command: "echo $HOME", Direct: true})
	require.NoError(t, err)
	assert.Equal(t, "$HOME\n", string(res.Output))
}

func TestRun_DirectMissingProgram(t *testing.T) {
	_, err := shRunner().Run(context.Background(), Invocation{Command: "definitely-not-a-real-program-xyz", Direct: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := shRunner().Run(context.Background(), Invocation{Command: "   "})
	assert.True(t, errors.Is(err, ErrEmptyCommand))
}

func TestRun_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0o644))

	res, err := shRunner().Run(context.Background(), Invocation{Command: "ls", Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, string(res.Output), "marker.txt")
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := shRunner().Run(ctx, Invocation{Command: "sleep 5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRun_OutputCap(t *testing.T) {
	r := New(WithShell(&Shell{Type: ShellTypeSh, Path: "/bin/sh"}), WithMaxOutputBytes(8))
	res, err := r.Run(context.Background(), Invocation{Command: "printf 'aaaaaaaaaaaaaaaabbbb'"})
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbb", string(res.Output))
	assert.Equal(t, 12, res.Omitted)
}

// ---------------------------------------------------------------------------
// Shell detection
// ---------------------------------------------------------------------------

func TestDetectShellType(t *testing.T) {
	tests := []struct {
		path string
		want ShellType
		ok   bool
	}{
		{"bash", ShellTypeBash, true},
		{"/usr/bin/zsh", ShellTypeZsh, true},
		{"/bin/sh", ShellTypeSh, true},
		{"/usr/local/bin/fish", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			st, ok := DetectShellType(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, st)
			}
		})
	}
}

func TestDetectUserShell_FromEnv(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	s := DetectUserShell()
	assert.Equal(t, ShellTypeZsh, s.Type)
	assert.Equal(t, "/bin/zsh", s.Path)
	assert.Equal(t, "zsh", s.Name())
}

func TestDetectUserShell_UnknownFallsBack(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/fish")
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if name == "bash" {
			return "/opt/bin/bash", nil
		}
		return "", os.ErrNotExist
	}
	t.Cleanup(func() { lookPath = orig })

	s := DetectUserShell()
	assert.Equal(t, ShellTypeBash, s.Type)
	assert.Equal(t, "/opt/bin/bash", s.Path)
}

func TestDetectUserShell_UltimateFallback(t *testing.T) {
	t.Setenv("SHELL", "")
	orig := lookPath
	lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	t.Cleanup(func() { lookPath = orig })

	s := DetectUserShell()
	assert.Equal(t, "/bin/sh", s.Path)
}

func TestShell_ExecArgs(t *testing.T) {
	s := &Shell{Type: ShellTypeBash, Path: "/bin/bash"}
	args := s.ExecArgs("ls -la")
	assert.Equal(t, []string{"/bin/bash", "-c", "ls -la"}, args)
	assert.False(t, strings.Contains(strings.Join(args, " "), "-lc"))
}

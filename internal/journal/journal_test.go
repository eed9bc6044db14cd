package journal_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/agens/internal/gate"
	"github.com/mfateev/agens/internal/journal"
	"github.com/mfateev/agens/internal/runner"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordApply(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	report := gate.Report{Entries: []gate.Entry{
		{Status: gate.StatusWrite, Target: "a.txt", Bytes: 5},
		{Status: gate.StatusError, Target: "ro.txt", Kind: gate.FailureOpen, Err: errors.New("read-only")},
	}}
	require.NoError(t, j.RecordApply(ctx, "s-1", gate.DecisionApplyImmediately, report))

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, "ro.txt", events[0].Target)
	assert.Equal(t, "error", events[0].Status)
	assert.Equal(t, "open: read-only", events[0].Detail)
	assert.Equal(t, journal.KindApply, events[0].Kind)

	assert.Equal(t, "a.txt", events[1].Target)
	assert.Equal(t, 5, events[1].Bytes)
	assert.Equal(t, "apply-immediately", events[1].Detail)
	assert.Equal(t, "s-1", events[1].SessionID)
	assert.False(t, events[1].At.IsZero())
}

func TestJournal_RecordCommand(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordCommand(ctx, "s-1", gate.CommandOutcome{
		Request: gate.CommandRequest{Command: "rm -rf x"},
		Verdict: gate.VerdictDeny,
	}))
	require.NoError(t, j.RecordCommand(ctx, "s-1", gate.CommandOutcome{
		Request:  gate.CommandRequest{Command: "ls"},
		Executed: true,
		Result:   runner.Result{Output: []byte("a\nb\n"), ExitCode: 0},
	}))
	require.NoError(t, j.RecordCommand(ctx, "s-1", gate.CommandOutcome{
		Request:  gate.CommandRequest{Command: "make"},
		Declined: true,
	}))

	events, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "declined", events[0].Status)
	assert.Equal(t, "ran", events[1].Status)
	assert.Equal(t, 4, events[1].Bytes)
	assert.Equal(t, "blocked", events[2].Status)
	assert.Equal(t, "deny", events[2].Detail)
	assert.Contains(t, events[1].String(), "[exit=0]")
}

func TestJournal_RecordCommandStartFailure(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordCommand(ctx, "s-1", gate.CommandOutcome{
		Request:  gate.CommandRequest{Command: "nosuchprog", Direct: true},
		StartErr: errors.New("executable file not found in $PATH"),
	}))

	events, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "failed", events[0].Status)
	assert.Equal(t, "nosuchprog", events[0].Target)
	assert.Contains(t, events[0].Detail, "not found")
	assert.Contains(t, events[0].String(), "failed")
}

func TestOpen_UnusableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "state")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o600))

	_, err := journal.Open(filepath.Join(blocker, "journal.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal: create directory")
}

func TestJournal_RecentLimit(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, j.RecordCommand(ctx, "s", gate.CommandOutcome{Request: gate.CommandRequest{Command: "ls"}, Executed: true}))
	}

	events, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Greater(t, events[0].ID, events[1].ID)
}

func TestJournal_ReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordCommand(ctx, "s", gate.CommandOutcome{Request: gate.CommandRequest{Command: "pwd"}, Executed: true}))
	require.NoError(t, j.Close())

	j, err = journal.Open(path)
	require.NoError(t, err)
	defer j.Close()
	events, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "pwd", events[0].Target)
}

func TestJournal_GateIntegration(t *testing.T) {
	j := openJournal(t)
	dir := t.TempDir()
	g := gate.New(gate.ConfirmFunc(func(context.Context, string, gate.Report) (bool, error) { return true, nil }), nil, gate.WithRecorder(j))

	session := &gate.Session{ID: "s-9", Modes: gate.Modes{Auto: true}}
	reply := "```file: " + filepath.Join(dir, "x.txt") + "\nhi\n```"
	_, err := g.HandleReply(context.Background(), session, reply)
	require.NoError(t, err)

	events, err := j.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "write", events[0].Status)
	assert.Equal(t, "s-9", events[0].SessionID)
}

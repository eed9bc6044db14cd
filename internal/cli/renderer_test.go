package cli

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mfateev/agens/internal/blocks"
	"github.com/mfateev/agens/internal/filefinder"
	"github.com/mfateev/agens/internal/gate"
	"github.com/mfateev/agens/internal/journal"
	"github.com/mfateev/agens/internal/llm"
	"github.com/mfateev/agens/internal/runner"
	"github.com/mfateev/agens/internal/sysinfo"
	"github.com/mfateev/agens/internal/websearch"
)

func TestRenderer_ReplyPlain(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	r.Reply("Hello, **world**!")

	assert.Equal(t, "Assistant> Hello, **world**!\n", buf.String())
}

func TestRenderer_ReplyMarkdown(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, false)

	r.Reply("# Title\n\nSome *text*.")

	assert.Contains(t, buf.String(), "Assistant>")
	assert.Contains(t, buf.String(), "Title")
	assert.Contains(t, buf.String(), "text")
}

func TestRenderer_Outcome(t *testing.T) {
	bs := []blocks.Block{{Path: "a.txt", Body: "hi\n"}}

	tests := []struct {
		name     string
		outcome  gate.ApplyOutcome
		contains []string
		empty    bool
	}{
		{
			name:    "ignored",
			outcome: gate.ApplyOutcome{Decision: gate.DecisionIgnore},
			empty:   true,
		},
		{
			name:    "no blocks",
			outcome: gate.ApplyOutcome{Decision: gate.DecisionApplyImmediately},
			empty:   true,
		},
		{
			name: "dry run",
			outcome: gate.ApplyOutcome{
				Decision: gate.DecisionPreviewOnly,
				Blocks:   bs,
				Preview:  gate.Preview(bs),
			},
			contains: []string{"Dry run", "[plan] a.txt (3 bytes)"},
		},
		{
			name: "declined",
			outcome: gate.ApplyOutcome{
				Decision: gate.DecisionPreviewThenConfirm,
				Blocks:   bs,
				Result:   gate.Report{Entries: []gate.Entry{{Status: gate.StatusCancelled}}},
			},
			contains: []string{"[cancelled] changes were not applied"},
		},
		{
			name: "auto applied with failure",
			outcome: gate.ApplyOutcome{
				Decision: gate.DecisionApplyImmediately,
				Blocks:   bs,
				Applied:  true,
				Result: gate.Report{Entries: []gate.Entry{
					{Status: gate.StatusError, Target: "a.txt", Kind: gate.FailureOpen, Err: errors.New("denied")},
				}},
			},
			contains: []string{"Auto-applied:", "[error] Failed to open file for writing: a.txt"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewRenderer(&buf, true, true).Outcome(tt.outcome)
			if tt.empty {
				assert.Empty(t, buf.String())
				return
			}
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderer_Command(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	r.Command(gate.CommandOutcome{
		Request:  gate.CommandRequest{Command: "ls"},
		Executed: true,
		Result:   runner.Result{Output: []byte("a\nb"), ExitCode: 2},
	})
	assert.Equal(t, "a\nb\n[exit=2]\n", buf.String())

	buf.Reset()
	r.Command(gate.CommandOutcome{
		Request: gate.CommandRequest{Command: "rm -rf /"},
		Verdict: gate.VerdictDeny,
	})
	assert.Contains(t, buf.String(), "[deny] rm -rf /")
	assert.Contains(t, buf.String(), "/deny list")

	buf.Reset()
	r.Command(gate.CommandOutcome{Request: gate.CommandRequest{Command: "make"}, Declined: true})
	assert.Contains(t, buf.String(), "[cancelled] command was not run")
}

func TestRenderer_CommandOmittedOutput(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, true, true).Command(gate.CommandOutcome{
		Executed: true,
		Result:   runner.Result{Output: []byte("tail\n"), Omitted: 42},
	})
	assert.Contains(t, buf.String(), "42 bytes of output omitted")
}

func TestRenderer_Listings(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	r.Numbered("Models:", []string{"llama3", "qwen"})
	r.Bullets("Allow patterns:", nil)
	r.SearchResults([]websearch.Result{{Text: "untitled result text", URL: "https://example.com"}})
	r.Hits([]filefinder.Hit{{Path: "main.go", Score: 8}})

	out := buf.String()
	assert.Contains(t, out, "  [1] llama3\n  [2] qwen\n")
	assert.Contains(t, out, "  (empty)")
	assert.Contains(t, out, "[1] untitled result text")
	assert.Contains(t, out, "https://example.com")
	assert.Contains(t, out, "[1] score=8 main.go")
}

func TestRenderer_History(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	r.History(nil)
	assert.Contains(t, buf.String(), "No recorded activity.")

	buf.Reset()
	r.History([]journal.Event{{Kind: journal.KindCommand, Status: "ran", Target: "ls", At: time.Now()}})
	assert.Contains(t, buf.String(), "ls [exit=0]")
}

func TestRenderer_Banner(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true)

	r.Banner(sysinfo.Info{OS: "darwin", RAMBytes: 32 << 30, AppleSilicon: true}, 0.5, llm.DefaultTuning())

	out := buf.String()
	assert.Contains(t, out, "System: macOS, RAM ~32GB")
	assert.Contains(t, out, "~16GB usable")
	assert.Contains(t, out, "Apple Silicon")
	assert.Contains(t, out, "context=4096")
}

func TestRenderer_ColorDisabled(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, true, true) // noColor=true

	r.Entries(gate.Report{Entries: []gate.Entry{{Status: gate.StatusWrite, Target: "x", Bytes: 1}}})
	r.Error("boom")

	// Should not contain ANSI escape codes
	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "[write] x (1 bytes)")
}

func TestRenderer_ColorEnabled(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, false, true) // noColor=false

	r.Entries(gate.Report{Entries: []gate.Entry{{Status: gate.StatusWrite, Target: "x", Bytes: 1}}})

	// Should contain ANSI escape codes
	assert.Contains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "x (1 bytes)")
}

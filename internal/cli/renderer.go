package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/mfateev/agens/internal/filefinder"
	"github.com/mfateev/agens/internal/gate"
	"github.com/mfateev/agens/internal/journal"
	"github.com/mfateev/agens/internal/llm"
	"github.com/mfateev/agens/internal/sysinfo"
	"github.com/mfateev/agens/internal/websearch"
)

const defaultWrapWidth = 80

// Renderer writes everything the REPL shows the operator.
type Renderer struct {
	w          io.Writer
	noColor    bool
	noMarkdown bool
	md         *glamour.TermRenderer

	tag     map[string]lipgloss.Style
	speaker lipgloss.Style
	dim     lipgloss.Style
}

// NewRenderer creates a renderer writing to w. Color is forced on unless
// noColor; callers pass noColor for non-terminal output.
func NewRenderer(w io.Writer, noColor, noMarkdown bool) *Renderer {
	r := &Renderer{w: w, noColor: noColor, noMarkdown: noMarkdown}

	lg := lipgloss.NewRenderer(w)
	if noColor {
		lg.SetColorProfile(termenv.Ascii)
	} else {
		lg.SetColorProfile(termenv.ANSI256)
	}

	r.tag = map[string]lipgloss.Style{
		"plan":        lg.NewStyle().Foreground(lipgloss.Color("39")),
		"write":       lg.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		"error":       lg.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		"cancelled":   lg.NewStyle().Foreground(lipgloss.Color("214")),
		"deny":        lg.NewStyle().Foreground(lipgloss.Color("196")),
		"not-allowed": lg.NewStyle().Foreground(lipgloss.Color("214")),
		"warn":        lg.NewStyle().Foreground(lipgloss.Color("214")),
		"info":        lg.NewStyle().Foreground(lipgloss.Color("245")),
	}
	r.speaker = lg.NewStyle().Foreground(lipgloss.Color("141")).Bold(true)
	r.dim = lg.NewStyle().Foreground(lipgloss.Color("245"))

	if !noMarkdown {
		style := glamourstyles.DarkStyleConfig
		if noColor {
			style = glamourstyles.ASCIIStyleConfig
		}
		// Heading prefixes read as noise in chat replies.
		style.H2.Prefix = ""
		style.H3.Prefix = ""
		style.H4.Prefix = ""
		style.H5.Prefix = ""
		style.H6.Prefix = ""
		md, err := glamour.NewTermRenderer(
			glamour.WithStyles(style),
			glamour.WithWordWrap(wrapWidth(w)),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// wrapWidth is the terminal width when w is a terminal, else 80.
func wrapWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWrapWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWrapWidth
	}
	return width
}

func (r *Renderer) tagged(tag, msg string) string {
	label := "[" + tag + "]"
	if style, ok := r.tag[tag]; ok {
		label = style.Render(label)
	}
	if msg == "" {
		return label
	}
	return label + " " + msg
}

// Line writes one plain line.
func (r *Renderer) Line(format string, args ...interface{}) {
	fmt.Fprintf(r.w, format+"\n", args...)
}

// Info writes an informational line.
func (r *Renderer) Info(format string, args ...interface{}) {
	fmt.Fprintln(r.w, r.tagged("info", fmt.Sprintf(format, args...)))
}

// Warn writes a warning line.
func (r *Renderer) Warn(format string, args ...interface{}) {
	fmt.Fprintln(r.w, r.tagged("warn", fmt.Sprintf(format, args...)))
}

// Error writes an error line.
func (r *Renderer) Error(format string, args ...interface{}) {
	fmt.Fprintln(r.w, r.tagged("error", fmt.Sprintf(format, args...)))
}

// Reply writes an assistant reply, rendered as markdown when enabled.
func (r *Renderer) Reply(text string) {
	body := text
	if r.md != nil {
		if out, err := r.md.Render(text); err == nil {
			body = strings.Trim(out, "\n")
		}
	}
	fmt.Fprintf(r.w, "%s %s\n", r.speaker.Render("Assistant>"), body)
}

// ---------------------------------------------------------------------------
// Gate output
// ---------------------------------------------------------------------------

// Entries writes one status-tagged line per report entry.
func (r *Renderer) Entries(report gate.Report) {
	for _, e := range report.Entries {
		line := e.String()
		tag := "[" + string(e.Status) + "]"
		fmt.Fprintln(r.w, r.tagged(string(e.Status), strings.TrimPrefix(strings.TrimPrefix(line, tag), " ")))
	}
}

// Outcome writes what the gate did with a reply's file blocks. Nothing is
// written when the reply was ignored or had no blocks.
func (r *Renderer) Outcome(out gate.ApplyOutcome) {
	if out.Decision == gate.DecisionIgnore || len(out.Blocks) == 0 {
		return
	}
	switch out.Decision {
	case gate.DecisionPreviewOnly:
		r.Line("%s", r.dim.Render("Dry run, planned changes:"))
		r.Entries(out.Preview)
	case gate.DecisionPreviewThenConfirm:
		if out.Applied {
			r.Line("%s", r.dim.Render("Applied:"))
		}
		r.Entries(out.Result)
	case gate.DecisionApplyImmediately:
		r.Line("%s", r.dim.Render("Auto-applied:"))
		r.Entries(out.Result)
	}
}

// Command writes a command outcome: the block reason and hint, the
// cancellation, or the captured output followed by the exit code.
func (r *Renderer) Command(out gate.CommandOutcome) {
	switch {
	case out.Blocked():
		fmt.Fprintln(r.w, r.tagged(string(out.Verdict), out.Request.Command))
		r.Line("%s", out.Hint())
	case out.Declined:
		fmt.Fprintln(r.w, r.tagged("cancelled", "command was not run"))
	case out.Executed:
		output := out.Result.Output
		if len(output) > 0 {
			r.w.Write(output)
			if output[len(output)-1] != '\n' {
				fmt.Fprintln(r.w)
			}
		}
		if out.Result.Omitted > 0 {
			r.Line("%s", r.dim.Render(fmt.Sprintf("... %d bytes of output omitted ...", out.Result.Omitted)))
		}
		r.Line("[exit=%d]", out.Result.ExitCode)
	}
}

// ---------------------------------------------------------------------------
// Listings
// ---------------------------------------------------------------------------

// Numbered writes title followed by "  [n] item" lines.
func (r *Renderer) Numbered(title string, items []string) {
	r.Line("%s", title)
	for i, item := range items {
		r.Line("  [%d] %s", i+1, item)
	}
}

// Bullets writes title followed by "  - item" lines, or "  (empty)".
func (r *Renderer) Bullets(title string, items []string) {
	r.Line("%s", title)
	if len(items) == 0 {
		r.Line("  (empty)")
		return
	}
	for _, item := range items {
		r.Line("  - %s", item)
	}
}

// SearchResults writes web search hits; untitled hits show a text excerpt.
func (r *Renderer) SearchResults(results []websearch.Result) {
	r.Line("Web results:")
	for i, res := range results {
		title := res.Title
		if title == "" {
			title = excerpt(res.Text, 60)
		}
		r.Line("  [%d] %s", i+1, title)
		r.Line("     %s", r.dim.Render(res.URL))
	}
}

// Hits writes ranked file candidates.
func (r *Renderer) Hits(hits []filefinder.Hit) {
	r.Line("Candidate files:")
	for i, h := range hits {
		r.Line("  [%d] score=%d %s", i+1, h.Score, h.Path)
	}
}

// History writes journal events, newest first.
func (r *Renderer) History(events []journal.Event) {
	if len(events) == 0 {
		r.Line("No recorded activity.")
		return
	}
	for _, e := range events {
		r.Line("  %s", e.String())
	}
}

// Banner writes the detected resources and the tuning derived from them.
func (r *Renderer) Banner(info sysinfo.Info, unifiedRatio float64, t llm.Tuning) {
	var b strings.Builder
	b.WriteString("System: ")
	switch info.OS {
	case "darwin":
		b.WriteString("macOS")
	case "linux":
		b.WriteString("Linux")
	case "windows":
		b.WriteString("Windows")
	default:
		b.WriteString("Unknown")
	}
	fmt.Fprintf(&b, ", RAM ~%dGB", info.RAMGB())
	switch {
	case info.VRAMMB > 0:
		fmt.Fprintf(&b, ", VRAM ~%dGB", info.VRAMMB/1024)
	case info.OS == "darwin" && info.AppleSilicon:
		fmt.Fprintf(&b, ", integrated GPU (unified memory, ~%dGB usable)", sysinfo.UnifiedGPUEstimateGB(info, unifiedRatio))
	default:
		b.WriteString(", VRAM unknown")
	}
	if info.AppleSilicon {
		b.WriteString(", Apple Silicon")
	}
	if info.GPUName != "" {
		b.WriteString(", GPU: " + info.GPUName)
	}
	r.Line("%s", b.String())
	r.Tuning(t)
}

// Tuning writes the current inference parameters.
func (r *Renderer) Tuning(t llm.Tuning) {
	r.Line("Tuning: context=%d, max_tokens=%d, temperature=%g, top_p=%g, gpu_layers=%d",
		t.Context, t.MaxTokens, t.Temperature, t.TopP, t.GPULayers)
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

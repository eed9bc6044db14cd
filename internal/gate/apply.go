package gate

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mfateev/agens/internal/blocks"
)

// FileSystem is the subset of filesystem operations Apply performs.
type FileSystem interface {
	MkdirAll(dir string, perm os.FileMode) error
	OpenFile(name string, flag int, perm os.FileMode) (io.WriteCloser, error)
}

// OSFileSystem writes to the real filesystem.
type OSFileSystem struct{}

// MkdirAll wraps os.MkdirAll.
func (OSFileSystem) MkdirAll(dir string, perm os.FileMode) error {
	return os.MkdirAll(dir, perm)
}

// OpenFile wraps os.OpenFile.
func (OSFileSystem) OpenFile(name string, flag int, perm os.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(name, flag, perm)
}

// Preview returns one plan entry per block and touches nothing.
func Preview(bs []blocks.Block) Report {
	var r Report
	for _, b := range bs {
		r.Entries = append(r.Entries, Entry{Status: StatusPlan, Target: b.Path, Bytes: len(b.Body)})
	}
	return r
}

// Apply writes each block in order, creating parent directories and
// replacing existing files. A failing block yields an error entry and the
// remaining blocks are still attempted. Paths are used as given.
func Apply(fsys FileSystem, bs []blocks.Block) Report {
	var r Report
	for _, b := range bs {
		r.Entries = append(r.Entries, applyOne(fsys, b))
	}
	return r
}

func applyOne(fsys FileSystem, b blocks.Block) Entry {
	if dir := filepath.Dir(b.Path); dir != "." && dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return Entry{Status: StatusError, Target: dir, Kind: FailureMkdir, Err: err}
		}
	}

	f, err := fsys.OpenFile(b.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Entry{Status: StatusError, Target: b.Path, Kind: FailureOpen, Err: err}
	}

	_, werr := io.WriteString(f, b.Body)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		return Entry{Status: StatusError, Target: b.Path, Kind: FailureWrite, Err: werr}
	}
	return Entry{Status: StatusWrite, Target: b.Path, Bytes: len(b.Body)}
}

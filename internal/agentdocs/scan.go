// Package agentdocs discovers project guidance documents (AGENTS.md and its
// variants) under a directory tree and extracts the task items they list.
package agentdocs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// recognizedNames are matched against the lowercased base name, so AGENTS.md,
// AGENT.md, agents.md, agent.md and any other casing are all accepted.
var recognizedNames = map[string]bool{
	"agents.md": true,
	"agent.md":  true,
}

// Document is a discovered guidance document and its full text.
type Document struct {
	Path    string
	Content string
}

// IsRecognizedName reports whether a file's base name marks it as a guidance
// document.
func IsRecognizedName(name string) bool {
	return recognizedNames[strings.ToLower(name)]
}

// Scan walks root and returns every readable guidance document beneath it,
// ordered by ascending path length. Directories that cannot be entered and
// files that cannot be read are skipped; Scan never fails.
func Scan(root string) []Document {
	return ScanWithLogger(root, zap.NewNop())
}

// ScanWithLogger is Scan with skipped entries reported at debug level.
func ScanWithLogger(root string, logger *zap.Logger) []Document {
	var docs []Document

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsRecognizedName(d.Name()) {
			return nil
		}
		if !isRegularFile(path, d) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Debug("skipping unreadable document", zap.String("path", path), zap.Error(readErr))
			return nil
		}
		docs = append(docs, Document{Path: path, Content: string(data)})
		return nil
	})

	sort.SliceStable(docs, func(i, j int) bool {
		return len(docs[i].Path) < len(docs[j].Path)
	})
	return docs
}

// isRegularFile reports whether d is a regular file, following a symlink to
// its target. Dangling links are not.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type()&fs.ModeSymlink == 0 {
		return d.Type().IsRegular()
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

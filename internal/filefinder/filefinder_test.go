package filefinder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFind_RanksPathAndContentMatches(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "internal", "parser", "parser.go"), []byte("package parser\n// Parser entry\n"))
	write(t, filepath.Join(root, "docs", "notes.md"), []byte("mentions the parser once\n"))
	write(t, filepath.Join(root, "main.go"), []byte("package main\n"))

	hits := Find(root, "Parser", 10)
	require.Len(t, hits, 2)
	assert.Equal(t, filepath.Join(root, "internal", "parser", "parser.go"), hits[0].Path)
	// path hit (5) + two matching lines (3 each)
	assert.Equal(t, 11, hits[0].Score)
	assert.Equal(t, "package parser\n// Parser entry\n", hits[0].Snippet)
	assert.Equal(t, 3, hits[1].Score)
}

func TestFind_SkipsIgnoredDirsAndBinaries(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "node_modules", "lib", "widget.js"), []byte("widget"))
	write(t, filepath.Join(root, ".git", "widget"), []byte("widget"))
	write(t, filepath.Join(root, "widget.bin"), []byte{0, 1, 2, 3, 4, 5, 6, 7, 'w'})
	write(t, filepath.Join(root, "src", "widget.go"), []byte("package widget\n"))

	hits := Find(root, "widget", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, filepath.Join(root, "src", "widget.go"), hits[0].Path)
}

func TestFind_SnippetCapAndMax(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.txt"), []byte("key 1\nkey 2\nkey 3\nkey 4\n"))
	write(t, filepath.Join(root, "b.txt"), []byte("key\n"))

	hits := Find(root, "key", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "key 1\nkey 2\nkey 3\n", hits[0].Snippet)
	assert.Equal(t, 12, hits[0].Score)
}

func TestFind_EmptyQuery(t *testing.T) {
	assert.Nil(t, Find(t.TempDir(), "   ", 5))
}

func TestLooksBinary(t *testing.T) {
	assert.False(t, looksBinary([]byte("plain text\n\twith tabs\r\n")))
	assert.True(t, looksBinary([]byte{0, 0, 0, 'a'}))
	assert.False(t, looksBinary(nil))
}

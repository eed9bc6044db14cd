// Package filefinder ranks project files by how well they match a keyword
// query, for pointing the operator at files worth attaching to a prompt.
package filefinder

import (
	"bufio"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	".git": true, "build": true, "dist": true, "node_modules": true,
	".venv": true, "venv": true, "target": true, "bin": true,
	"obj": true, ".next": true, ".cache": true,
}

const (
	prefixBytes  = 64 << 10
	maxLines     = 300
	maxSnippets  = 3
	pathHitScore = 5
	lineHitScore = 3
)

// Hit is a scored file.
type Hit struct {
	Path    string
	Score   int
	Snippet string
}

// Find walks base and returns up to max files matching any whitespace
// separated token of query, best first. Tokens match case-insensitively
// against the path (+5 each) and against each of the first 300 lines of the
// file (+3 per token per line). Binary-looking files are skipped.
func Find(base, query string, max int) []Hit {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 || max <= 0 {
		return nil
	}

	var hits []Hit
	_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != base && ignoredDirs[strings.ToLower(d.Name())] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if hit, ok := score(path, tokens); ok {
			hits = append(hits, hit)
		}
		return nil
	})

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

func score(path string, tokens []string) (Hit, bool) {
	hit := Hit{Path: path}
	lowerPath := strings.ToLower(path)
	for _, tk := range tokens {
		if strings.Contains(lowerPath, tk) {
			hit.Score += pathHitScore
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return hit, false
	}
	defer f.Close()

	prefix, err := io.ReadAll(io.LimitReader(f, prefixBytes))
	if err != nil || looksBinary(prefix) {
		return hit, false
	}

	var snippet strings.Builder
	snippets := 0
	scanner := bufio.NewScanner(bytes.NewReader(prefix))
	scanner.Buffer(make([]byte, 0, 4096), prefixBytes)
	for n := 0; n < maxLines && scanner.Scan(); n++ {
		line := scanner.Text()
		lowerLine := strings.ToLower(line)
		matched := false
		for _, tk := range tokens {
			if strings.Contains(lowerLine, tk) {
				matched = true
				hit.Score += lineHitScore
			}
		}
		if matched && snippets < maxSnippets {
			snippet.WriteString(line)
			snippet.WriteByte('\n')
			snippets++
		}
	}
	hit.Snippet = snippet.String()
	return hit, hit.Score > 0
}

// looksBinary reports whether more than 1/16 of the first KiB are control
// bytes other than whitespace.
func looksBinary(data []byte) bool {
	if len(data) > 1024 {
		data = data[:1024]
	}
	nontext := 0
	for _, c := range data {
		if c < 9 || (c > 13 && c < 32) {
			nontext++
		}
	}
	return nontext > len(data)/16
}

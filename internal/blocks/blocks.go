// Package blocks locates file-content payloads inside free-form model output.
//
// A payload is a fenced region whose opening line names a target path:
//
//	```file: relative/path
//	<content>
//	```
//
// or the namespaced form
//
//	```agens:file=relative/path
//
// Fences with any other header (for example ```go) are commentary and are
// never actionable. Extraction is a literal scan over the reply text; it does
// not parse Markdown.
package blocks

import "strings"

const fence = "```"

const (
	filePrefix      = "file:"
	agensFilePrefix = "agens:file="
)

// HeaderKind distinguishes the recognized fence header forms.
type HeaderKind int

const (
	// HeaderNonActionable is any fence header that does not name a target.
	HeaderNonActionable HeaderKind = iota
	// HeaderFile is the "file:" form. The path is trimmed of surrounding
	// whitespace.
	HeaderFile
	// HeaderAgensFile is the namespaced "agens:file=" form. The path is used
	// exactly as written.
	HeaderAgensFile
)

// String returns the header form's short name.
func (k HeaderKind) String() string {
	switch k {
	case HeaderFile:
		return "file"
	case HeaderAgensFile:
		return "agens:file"
	default:
		return "non-actionable"
	}
}

// Header is a classified fence header. Path is only meaningful when Kind is
// actionable.
type Header struct {
	Kind HeaderKind
	Path string
}

// Actionable reports whether the header names a target path.
func (h Header) Actionable() bool {
	return h.Kind == HeaderFile || h.Kind == HeaderAgensFile
}

// Block is one target path paired with the exact content to write there.
type Block struct {
	Path string
	Body string
}

// ClassifyHeader inspects the text following an opening fence marker, up to
// but excluding the newline. Carriage returns are removed before matching.
func ClassifyHeader(line string) Header {
	line = strings.ReplaceAll(line, "\r", "")
	switch {
	case strings.HasPrefix(line, filePrefix):
		return Header{Kind: HeaderFile, Path: strings.TrimSpace(line[len(filePrefix):])}
	case strings.HasPrefix(line, agensFilePrefix):
		return Header{Kind: HeaderAgensFile, Path: line[len(agensFilePrefix):]}
	default:
		return Header{Kind: HeaderNonActionable}
	}
}

// Extract returns the file blocks in output, in order of appearance.
//
// Scanning stops at the first fence whose header line has no terminating
// newline, and at the first actionable fence that is never closed. A block is
// never emitted with a truncated body.
func Extract(output string) []Block {
	var out []Block
	pos := 0
	for {
		start := strings.Index(output[pos:], fence)
		if start < 0 {
			return out
		}
		start += pos

		headerStart := start + len(fence)
		eol := strings.IndexByte(output[headerStart:], '\n')
		if eol < 0 {
			return out
		}
		eol += headerStart

		header := ClassifyHeader(output[headerStart:eol])
		if !header.Actionable() {
			// Resume after this header line only; the fence body is scanned
			// again for later headers.
			pos = eol + 1
			continue
		}

		bodyStart := eol + 1
		end := strings.Index(output[bodyStart:], fence)
		if end < 0 {
			return out
		}
		end += bodyStart

		out = append(out, Block{Path: header.Path, Body: output[bodyStart:end]})
		pos = end + len(fence)
	}
}

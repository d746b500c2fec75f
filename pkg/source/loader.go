/*
Package source reads and normalizes caller-supplied files into plain text
for the context assembler, enforcing size and encoding constraints.
*/
package source

import (
	stderrors "errors"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/thothlabs/thoth/pkg/errors"
	"github.com/thothlabs/thoth/pkg/types"
)

// DefaultMaxBytes is the soft size cap applied to loaded files.
const DefaultMaxBytes = 48 * 1024

// hardCeilingFactor: files beyond hardCeilingFactor*MaxBytes are refused
// outright, since a prefix of MaxBytes already fills the context budget
// many times over and the read itself becomes the cost.
const hardCeilingFactor = 8

/*
Loader reads files up to a soft size cap, truncating anything larger.
Files beyond the hard ceiling fail instead of being read; truncation is
always reported on the document, never hidden.
*/
type Loader struct {
	maxBytes int
}

type LoaderOption func(*Loader)

func NewLoader(options ...LoaderOption) *Loader {
	loader := &Loader{maxBytes: DefaultMaxBytes}

	for _, option := range options {
		option(loader)
	}

	return loader
}

// WithMaxBytes overrides the soft size cap.
func WithMaxBytes(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

/*
Load reads the file at path into a SourceDocument. Content over the soft
cap is cut to a rune-safe prefix and flagged Truncated; the request is
never silently dropped. Load has no side effects beyond the read.
*/
func (l *Loader) Load(path string) (*types.SourceDocument, error) {
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.ErrNotFound.WithMessagef("source file %s does not exist", path)
		}
		return nil, errors.ErrNotFound.WithMessagef("source file %s: %v", path, err)
	}

	if info.IsDir() {
		return nil, errors.ErrDecode.WithMessagef("source path %s is a directory", path)
	}

	if info.Size() > int64(l.maxBytes)*hardCeilingFactor {
		return nil, errors.ErrTooLarge.WithMessagef(
			"source file %s is %d bytes, ceiling is %d",
			path, info.Size(), l.maxBytes*hardCeilingFactor,
		)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrNotFound.WithMessagef("reading source file %s: %v", path, err)
	}

	doc := &types.SourceDocument{
		Path:    path,
		ByteLen: len(raw),
	}

	text := string(raw)
	if len(text) > l.maxBytes {
		text = truncateRuneSafe(text, l.maxBytes)
		doc.Truncated = true
		log.Warn("truncated source file to fit size cap",
			"path", path, "bytes", doc.ByteLen, "cap", l.maxBytes)
	}

	if !utf8.ValidString(text) {
		return nil, errors.ErrDecode.WithMessagef("source file %s is not valid UTF-8", path)
	}

	doc.Text = text
	return doc, nil
}

/*
truncateRuneSafe cuts s to at most limit bytes without splitting a rune.
*/
func truncateRuneSafe(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Package documents tracks the authoritative text of open editor
// buffers. Snapshots handed out are immutable; a change replaces the
// stored document rather than mutating it.
package documents

import (
	"strings"
	"sync"
	"unicode/utf16"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/internal/errors"
)

// Document is an immutable snapshot of an open buffer.
type Document struct {
	URI     uri.URI
	Version int32
	Text    string
}

// Manager owns the set of open documents. All methods are safe for
// concurrent use.
type Manager struct {
	mu   sync.RWMutex
	docs map[uri.URI]*Document
}

// NewManager creates an empty document manager.
func NewManager() *Manager {
	return &Manager{docs: make(map[uri.URI]*Document)}
}

// Open registers a buffer with its initial text and version. Opening
// an already open document replaces it.
func (m *Manager) Open(u uri.URI, version int32, text string) *Document {
	doc := &Document{URI: u, Version: version, Text: text}
	m.mu.Lock()
	m.docs[u] = doc
	m.mu.Unlock()
	return doc
}

// ApplyFullChange replaces the document text. Changes carrying a
// version not newer than the stored one are ignored so stale
// notifications cannot roll a buffer backwards.
func (m *Manager) ApplyFullChange(u uri.URI, version int32, text string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.docs[u]
	if !ok {
		return nil, errors.NewDocumentNotFoundError(string(u))
	}
	if version <= old.Version {
		return old, nil
	}
	doc := &Document{URI: u, Version: version, Text: text}
	m.docs[u] = doc
	return doc, nil
}

// Close removes a buffer from the store.
func (m *Manager) Close(u uri.URI) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[u]; !ok {
		return errors.NewDocumentNotFoundError(string(u))
	}
	delete(m.docs, u)
	return nil
}

// Get returns the current snapshot of an open document.
func (m *Manager) Get(u uri.URI) (*Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[u]
	return doc, ok
}

// Snapshot returns the current snapshot of every open document.
func (m *Manager) Snapshot() []*Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Document, 0, len(m.docs))
	for _, doc := range m.docs {
		out = append(out, doc)
	}
	return out
}

// Len returns the number of open documents.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// OffsetAt converts a position with a UTF-16 column into a byte offset
// in text. Positions past the end of a line clamp to the line end;
// lines past the end of the document clamp to the text length.
func OffsetAt(text string, pos protocol.Position) int {
	off := 0
	for line := uint32(0); line < pos.Line; line++ {
		idx := strings.IndexByte(text[off:], '\n')
		if idx < 0 {
			return len(text)
		}
		off += idx + 1
	}
	var col uint32
	for i, r := range text[off:] {
		if col >= pos.Character || r == '\n' {
			return off + i
		}
		col += uint32(utf16.RuneLen(r))
	}
	return len(text)
}

// LineText returns the text of the given 0-based line without its
// trailing newline.
func LineText(text string, line uint32) string {
	start := OffsetAt(text, protocol.Position{Line: line})
	rest := text[start:]
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[:idx]
	}
	if n := len(rest); n > 0 && rest[n-1] == '\r' {
		rest = rest[:n-1]
	}
	return rest
}

package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

const testURI = uri.URI("file:///work/main.brs")

func TestOpenAndGet(t *testing.T) {
	m := NewManager()
	m.Open(testURI, 1, "let X = 1\n")

	doc, ok := m.Get(testURI)
	require.True(t, ok)
	assert.Equal(t, int32(1), doc.Version)
	assert.Equal(t, "let X = 1\n", doc.Text)
	assert.Equal(t, 1, m.Len())
}

func TestApplyFullChange(t *testing.T) {
	m := NewManager()
	m.Open(testURI, 1, "let X = 1\n")

	doc, err := m.ApplyFullChange(testURI, 2, "let X = 2\n")
	require.NoError(t, err)
	assert.Equal(t, int32(2), doc.Version)
	assert.Equal(t, "let X = 2\n", doc.Text)
}

func TestApplyFullChangeStaleVersion(t *testing.T) {
	m := NewManager()
	m.Open(testURI, 5, "current\n")

	doc, err := m.ApplyFullChange(testURI, 5, "stale\n")
	require.NoError(t, err)
	assert.Equal(t, "current\n", doc.Text)

	doc, err = m.ApplyFullChange(testURI, 3, "older\n")
	require.NoError(t, err)
	assert.Equal(t, "current\n", doc.Text)
	assert.Equal(t, int32(5), doc.Version)
}

func TestApplyFullChangeUnknownDocument(t *testing.T) {
	m := NewManager()
	_, err := m.ApplyFullChange(testURI, 1, "text")
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	m := NewManager()
	m.Open(testURI, 1, "text")
	require.NoError(t, m.Close(testURI))
	_, ok := m.Get(testURI)
	assert.False(t, ok)
	assert.Error(t, m.Close(testURI))
}

func TestSnapshotsAreImmutable(t *testing.T) {
	m := NewManager()
	m.Open(testURI, 1, "first\n")
	before, _ := m.Get(testURI)

	_, err := m.ApplyFullChange(testURI, 2, "second\n")
	require.NoError(t, err)
	assert.Equal(t, "first\n", before.Text)
}

func TestOffsetAt(t *testing.T) {
	text := "let X = 1\nprint X\n"
	assert.Equal(t, 0, OffsetAt(text, protocol.Position{Line: 0, Character: 0}))
	assert.Equal(t, 4, OffsetAt(text, protocol.Position{Line: 0, Character: 4}))
	assert.Equal(t, 10, OffsetAt(text, protocol.Position{Line: 1, Character: 0}))
	assert.Equal(t, 16, OffsetAt(text, protocol.Position{Line: 1, Character: 6}))
}

func TestOffsetAtClamps(t *testing.T) {
	text := "ab\ncd"
	// column past the line end stops at the newline
	assert.Equal(t, 2, OffsetAt(text, protocol.Position{Line: 0, Character: 99}))
	// line past the document clamps to the text length
	assert.Equal(t, 5, OffsetAt(text, protocol.Position{Line: 9, Character: 0}))
}

func TestOffsetAtUTF16(t *testing.T) {
	// the emoji is one rune, four UTF-8 bytes, two UTF-16 units
	text := "a\U0001F600b\n"
	assert.Equal(t, 1, OffsetAt(text, protocol.Position{Line: 0, Character: 1}))
	assert.Equal(t, 5, OffsetAt(text, protocol.Position{Line: 0, Character: 3}))
}

func TestLineText(t *testing.T) {
	text := "first\r\nsecond\nthird"
	assert.Equal(t, "first", LineText(text, 0))
	assert.Equal(t, "second", LineText(text, 1))
	assert.Equal(t, "third", LineText(text, 2))
	assert.Equal(t, "", LineText(text, 5))
}

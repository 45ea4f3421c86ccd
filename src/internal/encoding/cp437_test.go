package encoding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCP437ASCII(t *testing.T) {
	assert.Equal(t, "let X = 1", DecodeCP437([]byte("let X = 1")))
}

func TestDecodeCP437HighBytes(t *testing.T) {
	// 0x9C is the pound sign, 0xE9 is theta in code page 437
	got := DecodeCP437([]byte{0x9C, 0x20, 0xE9})
	assert.Equal(t, "£ Θ", got)
}

func TestEncodeRoundTrip(t *testing.T) {
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	text := DecodeCP437(data)
	back, err := EncodeCP437(text)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestEncodeUnmappableRune(t *testing.T) {
	_, err := EncodeCP437("price € 10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 6")
}

func TestReadFileCP437(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.brs")
	require.NoError(t, os.WriteFile(path, []byte{'l', 'e', 't', ' ', 0x9C}, 0o644))

	text, err := ReadFileCP437(path)
	require.NoError(t, err)
	assert.Equal(t, "let £", text)
}

func TestReadFileCP437Missing(t *testing.T) {
	_, err := ReadFileCP437(filepath.Join(t.TempDir(), "absent.brs"))
	assert.Error(t, err)
}

func TestIsSourceFile(t *testing.T) {
	assert.True(t, IsSourceFile("main.brs"))
	assert.True(t, IsSourceFile("MAIN.WBS"))
	assert.False(t, IsSourceFile("main.txt"))
	assert.False(t, IsSourceFile("main"))
}

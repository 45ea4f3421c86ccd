// Package encoding handles the CP437 boundary between BR source files on
// disk and the analyzer's UTF-8 text model. Decode and encode round-trip
// byte-for-byte: CP437 is a total single-byte code, so every byte decodes,
// and encoding fails only for runes outside the code page.
package encoding

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"br-analyzer/src/internal/errors"
)

// DecodeCP437 decodes raw file bytes into UTF-8 text
func DecodeCP437(data []byte) string {
	decoded, err := charmap.CodePage437.NewDecoder().Bytes(data)
	if err != nil {
		// CP437 decoding is total over all 256 byte values
		return string(data)
	}
	return string(decoded)
}

// EncodeCP437 encodes UTF-8 text back to CP437 bytes. Runes with no
// CP437 representation produce an EncodingError.
func EncodeCP437(text string) ([]byte, error) {
	encoded, err := charmap.CodePage437.NewEncoder().Bytes([]byte(text))
	if err != nil {
		offset := firstUnmappableOffset(text)
		return nil, errors.NewEncodingError("", offset, err)
	}
	return encoded, nil
}

func firstUnmappableOffset(text string) int {
	enc := charmap.CodePage437.NewEncoder()
	for i, r := range text {
		if _, err := enc.Bytes([]byte(string(r))); err != nil {
			return i
		}
	}
	return 0
}

// ReadFileCP437 reads a BR source file from disk, decoding CP437 to UTF-8
func ReadFileCP437(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodeCP437(data), nil
}

// IsSourceFile reports whether path has a BR source extension
// (.brs or .wbs), case-insensitive.
func IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".brs" || ext == ".wbs"
}

package common

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// URIToFilePath converts a file:// URI to a file system path
func URIToFilePath(u uri.URI) string {
	s := string(u)
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	return u.Filename()
}

// FilePathToURI converts a file system path to a file:// URI
func FilePathToURI(path string) uri.URI {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uri.File(abs)
}

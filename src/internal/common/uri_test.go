package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.lsp.dev/uri"
)

func TestFilePathToURIRoundTrip(t *testing.T) {
	u := FilePathToURI("/work/project/main.brs")
	assert.Equal(t, uri.URI("file:///work/project/main.brs"), u)
	assert.Equal(t, "/work/project/main.brs", URIToFilePath(u))
}

func TestURIToFilePathNonFileScheme(t *testing.T) {
	assert.Equal(t, "untitled:Untitled-1", URIToFilePath(uri.URI("untitled:Untitled-1")))
}

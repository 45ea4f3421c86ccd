// Package workspace maintains the cross-file view of a BR project:
// per-document symbol indexes, the global function name table, and the
// disk scanner that populates them.
package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.lsp.dev/uri"

	"br-analyzer/src/config"
	"br-analyzer/src/documents"
	"br-analyzer/src/index"
	"br-analyzer/src/internal/common"
	"br-analyzer/src/internal/encoding"
	"br-analyzer/src/internal/errors"
	"br-analyzer/src/parser"
)

// Indexer owns the workspace-wide symbol state. All methods are safe
// for concurrent use.
type Indexer struct {
	mu      sync.RWMutex
	cfg     *config.Config
	store   *documents.Manager
	parse   *parser.Service
	docs    map[uri.URI]*index.DocumentIndex
	globals map[string][]*index.SymbolEntry
	root    string
}

// ScanResult reports the outcome of one workspace scan. A scan keeps
// going past unreadable files; each failure is recorded rather than
// aborting the run.
type ScanResult struct {
	Files      []string
	Indexed    int
	FileErrors []*errors.ScanFileError
}

// NewIndexer creates a workspace indexer backed by the given document
// store and parse service.
func NewIndexer(cfg *config.Config, store *documents.Manager, parse *parser.Service) *Indexer {
	return &Indexer{
		cfg:     cfg,
		store:   store,
		parse:   parse,
		docs:    make(map[uri.URI]*index.DocumentIndex),
		globals: make(map[string][]*index.SymbolEntry),
	}
}

// Root returns the directory of the last scan.
func (ix *Indexer) Root() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.root
}

// UpdateDocument reindexes one document from the given text. Stale
/// updates lose: a version older than the stored one is ignored, except
// that version zero (disk content) always yields to an open buffer.
func (ix *Indexer) UpdateDocument(u uri.URI, version int32, text string) *index.DocumentIndex {
	if version == 0 {
		if doc, open := ix.store.Get(u); open {
			version = doc.Version
			text = doc.Text
		}
	}
	return ix.UpdateParsed(u, version, ix.parse.Parse(text))
}

// UpdateParsed installs a pre-parsed document, applying the same
// version arbitration as UpdateDocument.
func (ix *Indexer) UpdateParsed(u uri.URI, version int32, tree *parser.Tree) *index.DocumentIndex {
	idx := index.Build(u, version, tree)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if prev, ok := ix.docs[u]; ok {
		if version < prev.Version {
			return prev
		}
		ix.unlinkGlobals(prev)
	}
	ix.docs[u] = idx
	ix.linkGlobals(idx)
	return idx
}

// RemoveDocument drops a document from the workspace view.
func (ix *Indexer) RemoveDocument(u uri.URI) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if prev, ok := ix.docs[u]; ok {
		ix.unlinkGlobals(prev)
		delete(ix.docs, u)
	}
}

// Get returns the index of one document.
func (ix *Indexer) Get(u uri.URI) (*index.DocumentIndex, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	idx, ok := ix.docs[u]
	return idx, ok
}

// Documents returns the indexed document URIs in sorted order.
func (ix *Indexer) Documents() []uri.URI {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]uri.URI, 0, len(ix.docs))
	for u := range ix.docs {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LookupFunction returns every definition of a function name across
// the workspace, case insensitively.
func (ix *Indexer) LookupFunction(name string) []*index.SymbolEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	defs := ix.globals[strings.ToLower(name)]
	out := make([]*index.SymbolEntry, len(defs))
	copy(out, defs)
	return out
}

// IsDefined reports whether any document defines the function.
func (ix *Indexer) IsDefined(name string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.globals[strings.ToLower(name)]) > 0
}

// Functions returns every function definition in the workspace whose
// name starts with the given prefix, case insensitively. An empty
// prefix matches everything.
func (ix *Indexer) Functions(prefix string) []*index.SymbolEntry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	var out []*index.SymbolEntry
	for key, defs := range ix.globals {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, defs...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].URI < out[j].URI
	})
	return out
}

// linkGlobals and unlinkGlobals maintain the workspace function name
// table. Callers hold ix.mu.
func (ix *Indexer) linkGlobals(idx *index.DocumentIndex) {
	for key, entry := range idx.Functions {
		ix.globals[key] = append(ix.globals[key], entry)
	}
}

func (ix *Indexer) unlinkGlobals(idx *index.DocumentIndex) {
	for key, entry := range idx.Functions {
		defs := ix.globals[key]
		for i, e := range defs {
			if e == entry {
				ix.globals[key] = append(defs[:i], defs[i+1:]...)
				break
			}
		}
		if len(ix.globals[key]) == 0 {
			delete(ix.globals, key)
		}
	}
}

// Scan walks root for BR source files and indexes them with a worker
// pool. Files open in the document store keep their buffer content;
// disk content is ignored for them. Cancelling the context stops the
// scan between files.
func (ix *Indexer) Scan(ctx context.Context, root string) (*ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	ix.mu.Lock()
	ix.root = absRoot
	ix.mu.Unlock()

	files, err := ix.collectFiles(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	common.ScanLogger.Info("scanning %d files under %s", len(files), absRoot)

	result := &ScanResult{Files: files}
	workers := ix.cfg.WorkerCount()
	if workers > len(files) {
		workers = len(files)
	}
	if workers < 1 {
		workers = 1
	}

	fileChan := make(chan string, len(files))
	for _, f := range files {
		fileChan <- f
	}
	close(fileChan)

	var wg sync.WaitGroup
	var resultMu sync.Mutex
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				err := ix.indexFile(path)
				resultMu.Lock()
				if err != nil {
					result.FileErrors = append(result.FileErrors, errors.NewScanFileError(path, err))
				} else {
					result.Indexed++
				}
				resultMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return result, err
	}

	// open buffers the walk never saw (unsaved files, files outside
	// root) still belong to the workspace
	for _, doc := range ix.store.Snapshot() {
		if _, ok := ix.Get(doc.URI); !ok {
			ix.UpdateDocument(doc.URI, doc.Version, doc.Text)
			result.Indexed++
		}
	}

	common.ScanLogger.Info("scan complete: %d indexed, %d failed, %d open buffer(s)",
		result.Indexed, len(result.FileErrors), ix.store.Len())
	return result, nil
}

func (ix *Indexer) indexFile(path string) error {
	u := common.FilePathToURI(path)
	if doc, open := ix.store.Get(u); open {
		ix.UpdateDocument(u, doc.Version, doc.Text)
		return nil
	}
	text, err := encoding.ReadFileCP437(path)
	if err != nil {
		return err
	}
	ix.UpdateDocument(u, 0, text)
	return nil
}

// collectFiles walks the tree collecting source files, honoring the
// configured exclude list and, when enabled, the root .gitignore.
func (ix *Indexer) collectFiles(ctx context.Context, root string) ([]string, error) {
	var ignore *gitignore.GitIgnore
	if ix.cfg.UseGitignore {
		if gi, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
			ignore = gi
		}
	}
	exclude := make(map[string]bool, len(ix.cfg.ExcludeDirs))
	for _, d := range ix.cfg.ExcludeDirs {
		exclude[strings.ToLower(d)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if exclude[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			if ignore != nil && ignore.MatchesPath(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.hasSourceExtension(path) {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (ix *Indexer) hasSourceExtension(path string) bool {
	if len(ix.cfg.Extensions) == 0 {
		// no configured list means the standard source extensions
		return encoding.IsSourceFile(path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ix.cfg.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

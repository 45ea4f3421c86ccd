// Package server exposes the analyzer's capabilities as one engine
// with a method per editor operation. It owns the document store, the
// parse service, the workspace index and the diagnostic engine, and
// keeps them consistent as buffers change.
package server

import (
	"context"
	"io"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/analysis"
	"br-analyzer/src/builtins"
	"br-analyzer/src/config"
	"br-analyzer/src/diagnostics"
	"br-analyzer/src/documents"
	"br-analyzer/src/index"
	"br-analyzer/src/internal/common"
	"br-analyzer/src/parser"
	"br-analyzer/src/workspace"
)

// DiagnosticsHandler receives freshly computed diagnostics after a
// document changes. Engines without a handler simply skip the push.
type DiagnosticsHandler func(u uri.URI, version int32, diags []protocol.Diagnostic)

// Engine is the analyzer front end.
type Engine struct {
	cfg      *config.Config
	store    *documents.Manager
	parse    *parser.Service
	ws       *workspace.Indexer
	diag     *diagnostics.Engine
	resolver *analysis.Resolver

	pushDiags DiagnosticsHandler
}

// NewEngine assembles an engine from a configuration. A nil config
// uses the defaults.
func NewEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}
	store := documents.NewManager()
	parse := parser.NewService(builtins.IsBuiltin)
	ws := workspace.NewIndexer(cfg, store, parse)
	return &Engine{
		cfg:      cfg,
		store:    store,
		parse:    parse,
		ws:       ws,
		diag:     diagnostics.NewEngine(cfg.Rules, ws),
		resolver: analysis.NewResolver(ws),
	}
}

// SetDiagnosticsHandler installs the push hook. Set it before opening
// documents.
func (e *Engine) SetDiagnosticsHandler(h DiagnosticsHandler) {
	e.pushDiags = h
}

// Workspace exposes the underlying indexer, mainly for the CLI.
func (e *Engine) Workspace() *workspace.Indexer { return e.ws }

// OpenDocument registers an editor buffer and analyzes it.
func (e *Engine) OpenDocument(u uri.URI, version int32, text string) []protocol.Diagnostic {
	e.store.Open(u, version, text)
	return e.reanalyze(u, version, text)
}

// ChangeDocument applies a full-content change to an open buffer.
func (e *Engine) ChangeDocument(u uri.URI, version int32, text string) ([]protocol.Diagnostic, error) {
	doc, err := e.store.ApplyFullChange(u, version, text)
	if err != nil {
		return nil, err
	}
	if doc.Version != version {
		// stale change, keep the current analysis
		return e.Diagnostics(u), nil
	}
	return e.reanalyze(u, version, text), nil
}

// CloseDocument forgets an editor buffer. The workspace index keeps
// the last known content so cross-file queries stay answerable.
func (e *Engine) CloseDocument(u uri.URI) error {
	return e.store.Close(u)
}

func (e *Engine) reanalyze(u uri.URI, version int32, text string) []protocol.Diagnostic {
	tree := e.parse.Parse(text)
	idx := e.ws.UpdateParsed(u, version, tree)
	diags := e.diag.Check(idx.Tree, idx)
	if e.pushDiags != nil {
		e.pushDiags(u, version, diags)
	}
	return diags
}

// Diagnostics recomputes findings for an indexed document.
func (e *Engine) Diagnostics(u uri.URI) []protocol.Diagnostic {
	idx, ok := e.ws.Get(u)
	if !ok {
		return nil
	}
	return e.diag.Check(idx.Tree, idx)
}

// WorkspaceReport is the outcome of a full workspace analysis.
type WorkspaceReport struct {
	Scan        *workspace.ScanResult
	Diagnostics map[uri.URI][]protocol.Diagnostic
}

// Total returns the number of findings across all files.
func (r *WorkspaceReport) Total() int {
	n := 0
	for _, d := range r.Diagnostics {
		n += len(d)
	}
	return n
}

// ScanWorkspace indexes every source file under root and checks each
// indexed document. Scan-level file failures ride along in the
// result; they do not abort the analysis.
func (e *Engine) ScanWorkspace(ctx context.Context, root string) (*WorkspaceReport, error) {
	scan, err := e.ws.Scan(ctx, root)
	if err != nil {
		return nil, err
	}
	report := &WorkspaceReport{
		Scan:        scan,
		Diagnostics: make(map[uri.URI][]protocol.Diagnostic),
	}
	for _, u := range e.ws.Documents() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if diags := e.Diagnostics(u); len(diags) > 0 {
			report.Diagnostics[u] = diags
		}
	}
	common.AnalyzerLogger.Info("workspace analysis found %d issue(s) in %d file(s)",
		report.Total(), len(report.Diagnostics))
	return report, nil
}

// WriteReportCSV writes a workspace report in the CSV layout.
func (e *Engine) WriteReportCSV(w io.Writer, report *WorkspaceReport) error {
	return workspace.WriteCSV(w, report.Diagnostics)
}

// FindReferences lists the occurrences of the symbol at pos.
func (e *Engine) FindReferences(u uri.URI, pos protocol.Position, includeDecl bool) []protocol.Location {
	return e.resolver.FindReferences(u, pos, includeDecl)
}

// FindDefinition resolves the symbol at pos to its definitions.
func (e *Engine) FindDefinition(u uri.URI, pos protocol.Position) []protocol.Location {
	return e.resolver.FindDefinition(u, pos)
}

// Rename renames the symbol at pos across the workspace.
func (e *Engine) Rename(u uri.URI, pos protocol.Position, newName string) (*protocol.WorkspaceEdit, error) {
	return e.resolver.Rename(u, pos, newName)
}

func (e *Engine) indexFor(u uri.URI) (*index.DocumentIndex, bool) {
	return e.ws.Get(u)
}

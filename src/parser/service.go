package parser

import (
	"sync"

	"go.lsp.dev/protocol"

	"br-analyzer/src/internal/common"
)

// Service wraps a single reusable Parser behind a mutex so concurrent
// callers share it safely. Parsing never fails; problems are reported
// through the returned tree's ERROR and MISSING nodes.
type Service struct {
	mu sync.Mutex
	p  *Parser
}

// NewService returns a parse service. isBuiltin classifies system
// function names for call-site disambiguation.
func NewService(isBuiltin func(name string) bool) *Service {
	return &Service{p: NewParser(isBuiltin)}
}

// Parse produces a syntax tree for the given source text.
func (s *Service) Parse(src string) *Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	tree := s.p.Parse(src)
	if tree.Root.HasProblems() {
		common.AnalyzerLogger.Debug("parse completed with syntax problems")
	}
	return tree
}

// NodeAt parses src and returns the smallest node covering pos.
func (s *Service) NodeAt(src string, pos protocol.Position) *Node {
	return s.Parse(src).NodeAt(pos)
}

package errors

import (
	"fmt"
)

// RenameReason classifies why a rename request was rejected.
type RenameReason string

const (
	// NameConflict means the new name already denotes a different symbol
	// in the same resolution scope.
	NameConflict RenameReason = "NameConflict"
	// UnresolvedSymbol means the requested position does not resolve to
	// any renameable symbol.
	UnresolvedSymbol RenameReason = "UnresolvedSymbol"
)

// RenameRejectedError is returned when a rename cannot be applied.
// A rejected rename produces no edits.
type RenameRejectedError struct {
	Reason  RenameReason `json:"reason"`
	Symbol  string       `json:"symbol,omitempty"`
	NewName string       `json:"newName,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

func (e *RenameRejectedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("rename rejected (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("rename rejected (%s)", e.Reason)
}

// NewNameConflictError creates a rename rejection for a conflicting target name
func NewNameConflictError(symbol, newName, detail string) *RenameRejectedError {
	return &RenameRejectedError{
		Reason:  NameConflict,
		Symbol:  symbol,
		NewName: newName,
		Detail:  detail,
	}
}

// NewUnresolvedSymbolError creates a rename rejection for an unresolvable position
func NewUnresolvedSymbolError(detail string) *RenameRejectedError {
	return &RenameRejectedError{
		Reason: UnresolvedSymbol,
		Detail: detail,
	}
}

// IsRenameRejected reports whether err is a RenameRejectedError with the given reason
func IsRenameRejected(err error, reason RenameReason) bool {
	re, ok := err.(*RenameRejectedError)
	return ok && re.Reason == reason
}

// ScanFileError records a single file failure during a workspace scan.
// Scan failures are collected per file; they never abort the scan.
type ScanFileError struct {
	Path  string `json:"path"`
	Cause error  `json:"cause,omitempty"`
}

func (e *ScanFileError) Error() string {
	return fmt.Sprintf("scan error for %s: %v", e.Path, e.Cause)
}

func (e *ScanFileError) Unwrap() error {
	return e.Cause
}

// NewScanFileError creates a per-file scan error
func NewScanFileError(path string, cause error) *ScanFileError {
	return &ScanFileError{Path: path, Cause: cause}
}

// EncodingError reports bytes that cannot be represented under the
// fixed legacy code page. The offending file is skipped, not fatal.
type EncodingError struct {
	Path   string `json:"path,omitempty"`
	Offset int    `json:"offset"`
	Cause  error  `json:"cause,omitempty"`
}

func (e *EncodingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("encoding error in %s at offset %d: %v", e.Path, e.Offset, e.Cause)
	}
	return fmt.Sprintf("encoding error at offset %d: %v", e.Offset, e.Cause)
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}

// NewEncodingError creates an encoding error at the given byte offset
func NewEncodingError(path string, offset int, cause error) *EncodingError {
	return &EncodingError{Path: path, Offset: offset, Cause: cause}
}

// DocumentNotFoundError is returned for operations against a URI that
// is neither open nor present in the workspace index.
type DocumentNotFoundError struct {
	URI string `json:"uri"`
}

func (e *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document not found: %s", e.URI)
}

// NewDocumentNotFoundError creates a document lookup error
func NewDocumentNotFoundError(uri string) *DocumentNotFoundError {
	return &DocumentNotFoundError{URI: uri}
}

package workspace

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"br-analyzer/src/internal/common"
)

// WriteCSV writes a workspace diagnostics report. Rows are ordered by
// file path, then position, so repeated runs over the same workspace
// produce identical output.
func WriteCSV(w io.Writer, diags map[uri.URI][]protocol.Diagnostic) error {
	uris := make([]uri.URI, 0, len(diags))
	for u := range diags {
		uris = append(uris, u)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"file", "line", "column", "severity", "code", "message"}); err != nil {
		return err
	}
	for _, u := range uris {
		rows := append([]protocol.Diagnostic(nil), diags[u]...)
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i].Range.Start, rows[j].Range.Start
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Character < b.Character
		})
		path := common.URIToFilePath(u)
		for _, d := range rows {
			record := []string{
				path,
				// 1-based for human consumption
				fmt.Sprintf("%d", d.Range.Start.Line+1),
				fmt.Sprintf("%d", d.Range.Start.Character+1),
				severityName(d.Severity),
				codeString(d.Code),
				d.Message,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "information"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

func codeString(code interface{}) string {
	if code == nil {
		return ""
	}
	return fmt.Sprintf("%v", code)
}

package lsp

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/analysis"
)

const diagnosticSource = "dvql"

// publishDiagnostics checks the document and publishes the result, clearing
// earlier diagnostics when the document is clean.
func (s *Server) publishDiagnostics(ctx context.Context, doc *Document) {
	diagnostics := s.documentDiagnostics(ctx, doc)

	for _, d := range diagnostics {
		s.logger.Debug("Publishing diagnostic",
			zap.Uint32("lsp.start.line", d.Range.Start.Line),
			zap.Uint32("lsp.start.char", d.Range.Start.Character),
			zap.String("message", d.Message))
	}

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Version:     uint32(doc.Version), //nolint:gosec // LSP version numbers are always non-negative
		Diagnostics: diagnostics,
	})
	if err != nil {
		s.logger.Error("Failed to publish diagnostics", zap.Error(err))
	}
}

// refreshDiagnostics republishes the diagnostics of open SQL documents after
// the active environment changes.
func (s *Server) refreshDiagnostics(env string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.logger.Debug("Refreshing diagnostics", zap.String("environment", env))

	for _, doc := range s.documents {
		if doc.Language == LanguageSQL {
			s.publishDiagnostics(context.Background(), doc)
		}
	}
}

func (s *Server) documentDiagnostics(ctx context.Context, doc *Document) []protocol.Diagnostic {
	if strings.TrimSpace(doc.Content) == "" {
		return []protocol.Diagnostic{}
	}

	if doc.Language == LanguageFetchXML {
		return fetchXMLDiagnostics(doc.Content)
	}

	return s.sqlDiagnostics(ctx, doc)
}

// sqlDiagnostics reports the parse error, or the semantic checks of the
// statement. Metadata checks run against the active environment. A statement
// without semantic errors that still has no FetchXML translation gets a
// warning on its FROM table.
func (s *Server) sqlDiagnostics(ctx context.Context, doc *Document) []protocol.Diagnostic {
	if doc.ParseError != nil {
		return []protocol.Diagnostic{protocolDiagnostic(analysis.ParseErrorDiagnostic(doc.ParseError))}
	}

	if doc.Statement == nil {
		return []protocol.Diagnostic{}
	}

	var schema analysis.Schema
	if env, ok := s.env.ActiveEnvironment(); ok {
		schema = analysis.EnvironmentSchema(s.cache, env)
	}

	result := analysis.NewAnalyzer(schema).AnalyzeStatement(ctx, doc.Statement)
	if result.SchemaError != nil {
		s.logger.Warn("Metadata checks skipped",
			zap.String("uri", string(doc.URI)),
			zap.Error(result.SchemaError))
	}

	diagnostics := make([]protocol.Diagnostic, 0, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		diagnostics = append(diagnostics, protocolDiagnostic(d))
	}

	if result.HasErrors() {
		return diagnostics
	}

	if _, err := dvql.ToFetchXML(doc.Statement); err != nil {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    nameRange(doc.Statement.From.Pos, doc.Statement.From.Entity),
			Severity: protocol.DiagnosticSeverityWarning,
			Code:     "fetchxml",
			Source:   diagnosticSource,
			Message:  err.Error(),
		})
	}

	return diagnostics
}

// protocolDiagnostic converts an analysis diagnostic. Empty spans are widened
// to one character so editors can show them.
func protocolDiagnostic(d analysis.Diagnostic) protocol.Diagnostic {
	rng := protocol.Range{
		Start: lexerToPosition(d.Span.Start),
		End:   lexerToPosition(d.Span.End),
	}
	if d.Span.Start == d.Span.End {
		rng = pointRange(d.Span.Start)
	}

	return protocol.Diagnostic{
		Range:    rng,
		Severity: protocol.DiagnosticSeverity(d.Severity),
		Code:     d.Code,
		Source:   diagnosticSource,
		Message:  d.Message,
	}
}

// fetchXMLDiagnostics reports the first well-formedness error of a FetchXML
// document.
func fetchXMLDiagnostics(content string) []protocol.Diagnostic {
	dec := xml.NewDecoder(strings.NewReader(content))

	for {
		// Position of the token about to be read
		line, col := dec.InputPos()

		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return []protocol.Diagnostic{}
		}

		if err != nil {
			var syntax *xml.SyntaxError
			if errors.As(err, &syntax) {
				line = syntax.Line
				col = 1
			}

			start := protocol.Position{
				Line:      uint32(max(0, line-1)), //nolint:gosec // G115: values are small line numbers
				Character: uint32(max(0, col-1)),  //nolint:gosec // G115: values are small column numbers
			}

			return []protocol.Diagnostic{{
				Range:    protocol.Range{Start: start, End: start},
				Severity: protocol.DiagnosticSeverityError,
				Code:     "xml",
				Source:   diagnosticSource,
				Message:  err.Error(),
			}}
		}
	}
}

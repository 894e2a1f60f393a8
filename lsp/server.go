// Package lsp implements a Language Server Protocol server for Dataverse SQL
// and FetchXML query documents.
package lsp

import (
	"context"
	"path"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/rlch/dvql"
	"github.com/rlch/dvql/completion"
	"github.com/rlch/dvql/intellisense"
)

// ExecuteQueryMethod is the notification carrying an intellisense.QueryRequest
// to the client.
const ExecuteQueryMethod = "dvql/executeQuery"

// Language is the query language of a document.
type Language string

const (
	// LanguageSQL is the SQL dialect understood by dvql.Parse.
	LanguageSQL Language = "sql"
	// LanguageFetchXML is a raw FetchXML document.
	LanguageFetchXML Language = "fetchxml"
)

// Notifier sends notifications that protocol.Client has no method for.
// *jsonrpc2.Conn satisfies it.
type Notifier interface {
	Notify(ctx context.Context, method string, params any) error
}

// Server implements the LSP Server interface for query documents.
type Server struct {
	client   protocol.Client
	notifier Notifier
	logger   *zap.Logger

	env          *intellisense.ContextService
	cache        *intellisense.Cache
	entityFilter *completion.EntityFilter

	// Document state
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document

	closeOnce   sync.Once
	unsubscribe func()

	// Server state
	initialized bool
	shutdown    bool
}

// Document represents an open document in the server.
type Document struct {
	URI      protocol.DocumentURI
	Version  int32
	Content  string
	Language Language

	// Statement is the parsed SQL statement, nil for FetchXML documents,
	// blank documents and documents that fail to parse.
	Statement  *dvql.Select
	ParseError error
}

// Option configures a Server.
type Option func(*Server)

// WithNotifier sets where query execution requests are forwarded.
func WithNotifier(n Notifier) Option {
	return func(s *Server) {
		s.notifier = n
	}
}

// WithEntityFilter hides entities the filter rejects from completion.
func WithEntityFilter(f *completion.EntityFilter) Option {
	return func(s *Server) {
		s.entityFilter = f
	}
}

// NewServer creates a new LSP server. env and cache are shared with the rest
// of the process. Until Close, the server forwards env's query execution
// requests to the notifier and republishes diagnostics when the active
// environment changes.
func NewServer(
	client protocol.Client,
	logger *zap.Logger,
	env *intellisense.ContextService,
	cache *intellisense.Cache,
	opts ...Option,
) *Server {
	s := &Server{
		client:    client,
		logger:    logger,
		env:       env,
		cache:     cache,
		documents: make(map[protocol.DocumentURI]*Document),
	}

	for _, opt := range opts {
		opt(s)
	}

	stopQueries := env.OnExecuteQueryRequest(s.forwardQueryRequest)
	stopEnv := env.OnEnvironmentChange(s.refreshDiagnostics)

	s.unsubscribe = func() {
		stopQueries()
		stopEnv()
	}

	return s
}

// Close unsubscribes from env. Safe to call more than once.
func (s *Server) Close() {
	s.closeOnce.Do(s.unsubscribe)
}

// Initialize handles the initialize request.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize", zap.String("rootURI", string(params.RootURI)))

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			// Full document sync - client sends entire content on change
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{".", " ", "<", `"`},
				ResolveProvider:   false,
			},
			// Outline of tables and selected columns
			DocumentSymbolProvider: true,
			// Table aliases
			DocumentHighlightProvider: true,
			ReferencesProvider:        true,
			RenameProvider: &protocol.RenameOptions{
				PrepareProvider: true,
			},
			DocumentFormattingProvider: true,
			ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
				Commands: Commands(),
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "dvql-lsp",
			Version: "0.1.0",
		},
	}, nil
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true
	s.Close()

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")
	// The main loop should handle exiting after this
	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Info("DidOpen",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.String("languageId", string(params.TextDocument.LanguageID)))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &Document{
		URI:      params.TextDocument.URI,
		Version:  params.TextDocument.Version,
		Content:  params.TextDocument.Text,
		Language: detectLanguage(params.TextDocument.URI, string(params.TextDocument.LanguageID)),
	}
	doc.analyze()

	s.documents[params.TextDocument.URI] = doc

	s.publishDiagnostics(ctx, doc)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.logger.Info("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[params.TextDocument.URI]
	if !ok {
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(params.TextDocument.URI)))

		return nil
	}

	// Full sync - take the last content change (should only be one with full sync)
	if len(params.ContentChanges) > 0 {
		doc.Content = params.ContentChanges[len(params.ContentChanges)-1].Text
		doc.Version = params.TextDocument.Version
		doc.analyze()

		s.publishDiagnostics(ctx, doc)
	}

	return nil
}

// DidClose handles textDocument/didClose notifications.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Info("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, params.TextDocument.URI)

	// Clear diagnostics for closed document
	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("Failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// DidSave handles textDocument/didSave notifications.
func (s *Server) DidSave(_ context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.logger.Info("DidSave", zap.String("uri", string(params.TextDocument.URI)))

	return nil
}

// getDocument returns a document by URI (read-locked).
func (s *Server) getDocument(uri protocol.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri]

	return doc, ok
}

func (s *Server) forwardQueryRequest(req intellisense.QueryRequest) {
	if s.notifier == nil {
		s.logger.Warn("No notifier, dropping query execution request", zap.Stringer("id", req.ID))

		return
	}

	err := s.notifier.Notify(context.Background(), ExecuteQueryMethod, req)
	if err != nil {
		s.logger.Error("Failed to forward query execution request",
			zap.Stringer("id", req.ID),
			zap.Error(err))
	}
}

// analyze parses SQL content. FetchXML is checked when diagnostics are built.
func (d *Document) analyze() {
	d.Statement, d.ParseError = nil, nil

	if d.Language != LanguageSQL || strings.TrimSpace(d.Content) == "" {
		return
	}

	d.Statement, d.ParseError = dvql.Parse(d.Content)
	if d.ParseError != nil {
		d.Statement = nil
	}
}

func detectLanguage(uri protocol.DocumentURI, languageID string) Language {
	switch strings.ToLower(languageID) {
	case "fetchxml", "xml":
		return LanguageFetchXML
	case "sql":
		return LanguageSQL
	}

	switch strings.ToLower(path.Ext(string(uri))) {
	case ".fetchxml", ".xml":
		return LanguageFetchXML
	default:
		return LanguageSQL
	}
}

package server

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "exdot-lsp"

var log = commonlog.GetLogger("exdot.server")

// LspServer provides editor features for EXDot programs.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → latest version

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// document is an open text document and its analysis.
type document struct {
	text     string
	analysis *analysis
}

func newDocument(text string) *document {
	return &document{text: text, analysis: analyze([]byte(text))}
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentReferences:     s.textDocumentReferences,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "EXDot LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"s", "g"},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true
	capabilities.DocumentSymbolProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.mu.Lock()
	s.docs = make(map[string]*document)
	s.mu.Unlock()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.store(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.store(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, doc)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) store(uri protocol.DocumentUri, text string) *document {
	doc := newDocument(text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	log.Debugf("analyzed %s: %d problems", uri, len(doc.analysis.problems))
	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.complete(params.Position), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	loc := doc.definition(params.TextDocument.URI, params.Position)
	if loc == nil {
		return nil, nil
	}
	return loc, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.references(params.TextDocument.URI, params.Position, params.Context.IncludeDeclaration), nil
}

func (s *LspServer) textDocumentDocumentSymbol(ctx *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.symbols(), nil
}

// --- Document-backed logic ---

func (d *document) complete(pos protocol.Position) []protocol.CompletionItem {
	kind, prefix, ok := escapePrefix(d.text, offsetAt(d.text, pos))
	if !ok {
		return nil
	}

	var items []protocol.CompletionItem
	for _, name := range commandNames(kind, prefix) {
		itemKind := protocol.CompletionItemKindFunction
		detail, _ := lookupCommand(kind, name)
		insert := name[len(prefix):] + `\`
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &itemKind,
			Detail:     &detail,
			InsertText: &insert,
		})
	}
	return items
}

func (d *document) hover(pos protocol.Position) *protocol.Hover {
	offset := offsetAt(d.text, pos)
	text := d.analysis.describe(offset)
	if text == "" {
		return nil
	}
	seg, _ := d.analysis.segmentAt(offset)
	r := rangeOf(d.text, seg.Start, seg.End)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: text,
		},
		Range: &r,
	}
}

func (d *document) definition(uri protocol.DocumentUri, pos protocol.Position) []protocol.Location {
	letter, ok := d.analysis.letterAt(offsetAt(d.text, pos))
	if !ok {
		return nil
	}
	label, ok := d.analysis.labels.Lookup(letter)
	if !ok {
		return nil
	}
	return []protocol.Location{{
		URI:   uri,
		Range: rangeOf(d.text, label.Pos, label.Pos+1),
	}}
}

func (d *document) references(uri protocol.DocumentUri, pos protocol.Position, includeDecl bool) []protocol.Location {
	letter, ok := d.analysis.letterAt(offsetAt(d.text, pos))
	if !ok {
		return nil
	}

	var locations []protocol.Location
	if includeDecl {
		if label, ok := d.analysis.labels.Lookup(letter); ok {
			locations = append(locations, protocol.Location{
				URI:   uri,
				Range: rangeOf(d.text, label.Pos, label.Pos+1),
			})
		}
	}
	for _, off := range d.analysis.jumps[letter] {
		locations = append(locations, protocol.Location{
			URI:   uri,
			Range: rangeOf(d.text, off, off+1),
		})
	}
	return locations
}

func (d *document) symbols() []protocol.DocumentSymbol {
	var symbols []protocol.DocumentSymbol
	for _, letter := range d.analysis.labels.Declared() {
		label, _ := d.analysis.labels.Lookup(letter)
		detail := fmt.Sprintf("%d jump(s)", len(d.analysis.jumps[letter]))
		r := rangeOf(d.text, label.Pos, label.Pos+1)
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           string(letter),
			Detail:         &detail,
			Kind:           protocol.SymbolKindKey,
			Range:          r,
			SelectionRange: r,
		})
	}
	return symbols
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: doc.diagnostics(),
	})
}

func (d *document) diagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lspName
	for _, p := range d.analysis.problems {
		severity := protocol.DiagnosticSeverityError
		if p.Severity == SeverityWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    rangeOf(d.text, p.Start, p.End),
			Severity: &severity,
			Source:   &source,
			Message:  p.Message,
		})
	}
	return diagnostics
}

// --- Text position helpers ---

// offsetAt converts an editor position to a byte offset, clamped to the
// text.
func offsetAt(text string, pos protocol.Position) int {
	offset := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	end := len(text)
	if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
		end = offset + i
	}
	offset += int(pos.Character)
	if offset > end {
		offset = end
	}
	return offset
}

// positionAt converts a byte offset to an editor position.
func positionAt(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	before := text[:offset]
	line := strings.Count(before, "\n")
	col := offset - (strings.LastIndexByte(before, '\n') + 1)
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func rangeOf(text string, start, end int) protocol.Range {
	return protocol.Range{Start: positionAt(text, start), End: positionAt(text, end)}
}

// escapePrefix reports whether offset sits inside the name of a #s or #g
// escape and returns the escape kind and the part of the name before the
// cursor.
func escapePrefix(text string, offset int) (kind byte, prefix string, ok bool) {
	start := offset
	for start > 0 && text[start-1] >= 'a' && text[start-1] <= 'z' {
		start--
	}
	word := text[start:offset]
	if start == 0 || text[start-1] != '#' || word == "" {
		return 0, "", false
	}
	if word[0] != 's' && word[0] != 'g' {
		return 0, "", false
	}
	return word[0], word[1:], true
}

func boolPtr(b bool) *bool {
	return &b
}

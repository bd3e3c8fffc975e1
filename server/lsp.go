package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "scriptc-lsp"

// LspServer publishes compile diagnostics to editors and answers hover,
// completion, definition and reference queries from the token stream.
type LspServer struct {
	worker *CompileWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server compiling through worker.
func NewLSP(worker *CompileWorker) *LspServer {
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]string),
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

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
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
	commonlog.NewInfoMessage(0, "scriptc LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

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
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
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

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(text, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	out, err := s.worker.Compile(context.Background(), text, "", "", s.worker.Options())
	if err != nil || out.Err != nil {
		return nil, nil
	}
	return hover(out.Code, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	if loc, ok := definition(uri, text, word); ok {
		return []protocol.Location{loc}, nil
	}
	return nil, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(uri, text, word), nil
}

// --- Token-backed logic ---

// identifiers returns the identifier tokens of text up to the first
// lexical error.
func identifiers(text string) []compiler.Token {
	l := compiler.NewLexer(text, compiler.Limits{})
	var out []compiler.Token
	for {
		tok, err := l.Next()
		if err != nil || tok.Type == compiler.TokenEOF {
			return out
		}
		if tok.Type == compiler.TokenIdentifier {
			out = append(out, tok)
		}
	}
}

var keywordCompletions = []string{
	"break", "case", "catch", "continue", "debugger", "default", "delete", "do",
	"else", "false", "finally", "for", "function", "if", "in", "instanceof",
	"new", "null", "of", "return", "switch", "this", "throw", "true", "try",
	"typeof", "var", "void", "while", "with",
}

func complete(text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := map[string]bool{prefix: true}

	names := make([]string, 0)
	for _, tok := range identifiers(text) {
		if !seen[tok.Value] && strings.HasPrefix(tok.Value, prefix) {
			seen[tok.Value] = true
			names = append(names, tok.Value)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		kind := protocol.CompletionItemKindVariable
		detail := "identifier"
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	for _, kw := range keywordCompletions {
		if !seen[kw] && strings.HasPrefix(kw, prefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "keyword"
			kwCopy := kw
			items = append(items, protocol.CompletionItem{
				Label:      kw,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &kwCopy,
			})
		}
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

// hover describes the compiled functions named word.
func hover(code *bytecode.CompiledCode, word string) *protocol.Hover {
	var fns []*bytecode.CompiledCode
	var walk func(*bytecode.CompiledCode)
	walk = func(c *bytecode.CompiledCode) {
		for _, lit := range c.Literals {
			if lit.Kind == bytecode.LiteralFunction && lit.Function != nil {
				if lit.Function.Name == word {
					fns = append(fns, lit.Function)
				}
				walk(lit.Function)
			}
		}
	}
	walk(code)
	if len(fns) == 0 {
		return nil
	}

	var b strings.Builder
	for i, fn := range fns {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		fmt.Fprintf(&b, "**function %s**", fn.Name)
		if fn.Has(bytecode.FlagStrict) {
			b.WriteString(" (strict)")
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%d parameters, %d registers, %d literals\n\n", fn.ArgumentEnd, int(fn.RegisterEnd)-int(fn.ArgumentEnd), len(fn.Literals))
		fmt.Fprintf(&b, "%d bytes of code, stack limit %d", len(fn.Code), fn.StackLimit)
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

// definition finds the first declaration of word: a var binding, a
// function name or a catch parameter.
func definition(uri protocol.DocumentUri, text, word string) (protocol.Location, bool) {
	l := compiler.NewLexer(text, compiler.Limits{})
	var prev, before compiler.TokenType
	for {
		tok, err := l.Next()
		if err != nil || tok.Type == compiler.TokenEOF {
			return protocol.Location{}, false
		}
		if tok.Type == compiler.TokenIdentifier && tok.Value == word {
			switch {
			case prev == compiler.TokenVar, prev == compiler.TokenFunction:
				return location(uri, text, tok), true
			case prev == compiler.TokenLParen && before == compiler.TokenCatch:
				return location(uri, text, tok), true
			}
		}
		before, prev = prev, tok.Type
	}
}

func references(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locations []protocol.Location
	for _, tok := range identifiers(text) {
		if tok.Value == word {
			locations = append(locations, location(uri, text, tok))
		}
	}
	return locations
}

func location(uri protocol.DocumentUri, text string, tok compiler.Token) protocol.Location {
	return protocol.Location{
		URI: uri,
		Range: protocol.Range{
			Start: lspPosition(text, tok.Pos.Offset),
			End:   lspPosition(text, tok.End),
		},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	out, err := s.worker.Compile(context.Background(), text, "", "", s.worker.Options())
	if err != nil {
		log.Warningf("diagnostics for %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(text, out.Err),
	})
}

// diagnostics converts a compile error to LSP diagnostics.
func diagnostics(text string, err error) []protocol.Diagnostic {
	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		return []protocol.Diagnostic{}
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	code := protocol.IntegerOrString{Value: cerr.Code.String()}
	start := lspPosition(text, cerr.Offset)
	end := start
	end.Character++
	return []protocol.Diagnostic{{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Code:     &code,
		Source:   &source,
		Message:  cerr.Message,
	}}
}

// lspPosition converts a byte offset to a zero-based line and UTF-16
// character position.
func lspPosition(text string, offset int) protocol.Position {
	if offset > len(text) {
		offset = len(text)
	}
	var line, char protocol.UInteger
	for i, r := range text[:offset] {
		switch {
		case r == '\n':
			line++
			char = 0
		case r == '\r':
			if i+1 < offset && text[i+1] == '\n' {
				continue
			}
			line++
			char = 0
		case r == 0x2028 || r == 0x2029:
			line++
			char = 0
		case r >= 0x10000:
			char += 2
		default:
			char++
		}
	}
	return protocol.Position{Line: line, Character: char}
}

// --- Text extraction helpers ---

func isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' || ch == '$'
}

// lineAt returns the line of text pos refers to and the cursor's byte
// column within it.
func lineAt(text string, pos protocol.Position) (string, int, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", 0, false
	}
	line := strings.TrimSuffix(lines[pos.Line], "\r")
	col := 0
	for units := 0; col < len(line) && units < int(pos.Character); {
		r, size := utf8.DecodeRuneInString(line[col:])
		col += size
		units++
		if r >= 0x10000 {
			units++
		}
	}
	return line, col, true
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	line, col, ok := lineAt(text, pos)
	if !ok {
		return ""
	}

	// Find start
	start := col
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(line[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}

	// Find end
	end := col
	for end < len(line) {
		r, size := utf8.DecodeRuneInString(line[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}

// Package server provides the fx language server.
package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/pixfx/compiler"
	"github.com/chazu/pixfx/pkg/bytecode"
	"github.com/chazu/pixfx/pkg/imaging"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "fx-lsp"

var log = commonlog.GetLogger("pixfx.lsp")

// document is an open editor buffer and the result of compiling it.
type document struct {
	text    string
	program *bytecode.Program
	err     error
}

// LspServer serves diagnostics, completion, hover and go-to-definition
// for fx expression files.
type LspServer struct {
	mu   sync.Mutex
	docs map[string]*document // URI → analysed document

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new language server.
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

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
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
	log.Info("fx LSP initializing")

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
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := s.update(uri, params.TextDocument.Text)
	s.publishDiagnostics(ctx, uri, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			doc := s.update(uri, whole.Text)
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

// update compiles text and stores the result for uri.
func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := analyze(text)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) lookup(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

// analyze compiles a document. Property references are accepted with a
// placeholder value since no image is attached to an editor buffer.
func analyze(text string) *document {
	doc := &document{text: text}
	expr := strings.TrimRightFunc(text, unicode.IsSpace)
	if strings.TrimSpace(expr) == "" {
		return doc
	}
	doc.program, doc.err = compiler.Compile(expr, compiler.Options{
		Properties: func(string) (string, bool) { return "0", true },
	})
	if doc.err != nil {
		log.Debugf("compile: %v", doc.err)
	}
	return doc
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix, qualified := extractPrefix(doc.text, params.Position)
	if prefix == "" && !qualified {
		return nil, nil
	}
	return complete(doc, prefix, qualified), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.lookup(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	return hover(doc, word), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	doc := s.lookup(uri)
	if doc == nil {
		return nil, nil
	}
	word := extractWord(doc.text, params.Position)
	if word == "" {
		return nil, nil
	}
	loc := definition(doc, uri, word)
	if loc == nil {
		return nil, nil
	}
	return []protocol.Location{*loc}, nil
}

// --- Analysis ---

// complete lists the names starting with prefix. After a '.' only channel
// qualifiers and attributes are offered.
func complete(doc *document, prefix string, qualified bool) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)
	add := func(name string, kind protocol.CompletionItemKind, detail string) {
		if !strings.HasPrefix(name, lowerPrefix) {
			return
		}
		nameCopy := name
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &nameCopy,
		})
	}

	if qualified {
		channels := imaging.ChannelQualifierNames()
		sort.Strings(channels)
		for _, name := range channels {
			add(name, protocol.CompletionItemKindField, "channel")
		}
		for _, b := range bytecode.Builtins() {
			if b.Op.Kind() == bytecode.KindAttribute && !strings.Contains(b.Name, ".") {
				add(b.Name, protocol.CompletionItemKindProperty, "attribute")
			}
		}
		return items
	}

	if doc.program != nil {
		for _, v := range doc.program.Variables {
			add(v.Name, protocol.CompletionItemKindVariable, "variable")
		}
	}
	for _, b := range bytecode.Builtins() {
		add(b.Name, completionKind(b.Op), describe(b.Op))
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func completionKind(op bytecode.Opcode) protocol.CompletionItemKind {
	switch op.Kind() {
	case bytecode.KindConstant:
		return protocol.CompletionItemKindConstant
	case bytecode.KindFunction:
		return protocol.CompletionItemKindFunction
	case bytecode.KindAttribute:
		return protocol.CompletionItemKindProperty
	}
	return protocol.CompletionItemKindVariable
}

// describe is the one-line summary shown for a builtin.
func describe(op bytecode.Opcode) string {
	switch op.Kind() {
	case bytecode.KindConstant:
		return fmt.Sprintf("constant = %g", bytecode.ConstantValue(op))
	case bytecode.KindFunction:
		switch n := op.Args(); n {
		case 0:
			return "function, no arguments"
		case 1:
			return "function, 1 argument"
		default:
			return fmt.Sprintf("function, %d arguments", n)
		}
	}
	return op.Kind().String()
}

func hover(doc *document, word string) *protocol.Hover {
	var b strings.Builder
	if v, ok := findVariable(doc, word); ok {
		pos := offsetPosition(doc.text, v.Offset)
		fmt.Fprintf(&b, "**%s**\n\nvariable, first assigned at line %d", v.Name, pos.Line+1)
	} else {
		lower := strings.ToLower(word)
		var found []string
		for _, bi := range bytecode.Builtins() {
			if bi.Name == lower {
				found = append(found, describe(bi.Op))
			}
		}
		if c, ok := imaging.LookupChannel(lower); ok {
			found = append(found, fmt.Sprintf("channel qualifier (%s)", c))
		}
		if len(found) == 0 {
			return nil
		}
		fmt.Fprintf(&b, "**%s**\n\n%s", lower, strings.Join(found, "\n\n"))
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func definition(doc *document, uri protocol.DocumentUri, word string) *protocol.Location {
	v, ok := findVariable(doc, word)
	if !ok {
		return nil
	}
	start := offsetPosition(doc.text, v.Offset)
	end := start
	end.Character += protocol.UInteger(utf16Len(v.Name))
	return &protocol.Location{
		URI:   uri,
		Range: protocol.Range{Start: start, End: end},
	}
}

func findVariable(doc *document, name string) (bytecode.Variable, bool) {
	if doc.program == nil {
		return bytecode.Variable{}, false
	}
	for _, v := range doc.program.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return bytecode.Variable{}, false
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(doc),
	})
}

// diagnostics converts a compile error into an LSP diagnostic.
func diagnostics(doc *document) []protocol.Diagnostic {
	if doc.err == nil {
		return []protocol.Diagnostic{}
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName

	var start protocol.Position
	message := doc.err.Error()
	var ce *compiler.Error
	if errors.As(doc.err, &ce) {
		start = offsetPosition(doc.text, ce.Pos.Offset)
		message = ce.Message
	}
	end := start
	end.Character++

	return []protocol.Diagnostic{{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Source:   &source,
		Message:  message,
	}}
}

// --- Text extraction helpers ---

// offsetPosition converts a byte offset to a zero-based LSP position.
// Columns count UTF-16 code units.
func offsetPosition(text string, offset int) protocol.Position {
	offset = min(max(offset, 0), len(text))
	before := text[:offset]
	line := strings.Count(before, "\n")
	col := utf16Len(before[strings.LastIndexByte(before, '\n')+1:])
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteColumn converts a UTF-16 column on line to a byte index.
func byteColumn(line string, units int) int {
	for i, r := range line {
		if units <= 0 {
			return i
		}
		units -= utf16.RuneLen(r)
	}
	return len(line)
}

// Identifiers are ASCII; bytes of multi-byte runes never join a word.
func isWordByte(ch byte) bool {
	if ch >= utf8.RuneSelf {
		return false
	}
	r := rune(ch)
	return unicode.IsLetter(r) || unicode.IsDigit(r) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion
// and whether it follows a '.'.
func extractPrefix(text string, pos protocol.Position) (string, bool) {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return "", false
	}
	line := lines[pos.Line]
	col := byteColumn(line, int(pos.Character))

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}

	qualified := start > 0 && line[start-1] == '.'
	return line[start:col], qualified
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := byteColumn(line, int(pos.Character))

	start := col
	for start > 0 && isWordByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isWordByte(line[end]) {
		end++
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}

package server

import (
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

	"github.com/chazu/tinyscript/compiler"
	"github.com/chazu/tinyscript/engine"
	"github.com/chazu/tinyscript/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tinyscript-lsp"

var log = commonlog.GetLogger("tinyscript.server")

// LspServer serves diagnostics, completion, hover, definition and
// references for tinyscript documents. Every request recompiles the
// document on the worker's engine.
type LspServer struct {
	worker *EngineWorker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server analyzing documents with e.
func NewLSP(e *engine.Engine) *LspServer {
	worker := NewEngineWorker(e)
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
	commonlog.NewInfoMessage(0, "tinyscript LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
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

	a, err := s.worker.Analyze(text)
	if err != nil {
		return nil, err
	}

	return s.complete(a, prefix), nil
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

	a, err := s.worker.Analyze(text)
	if err != nil {
		return nil, nil
	}

	return s.hover(a, word), nil
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

	a, err := s.worker.Analyze(text)
	if err != nil {
		return nil, nil
	}
	if locs := s.definition(a, uri, word); locs != nil {
		return locs, nil
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

	a, err := s.worker.Analyze(text)
	if err != nil {
		return nil, nil
	}

	return s.references(a, uri, word), nil
}

// --- Analysis (compiled on the worker goroutine, read anywhere) ---

// analysis is one compile of a document.
type analysis struct {
	text    string
	comp    *engine.Compilation
	symbols []vm.Symbol
	tokens  []compiler.Token
}

// analyze compiles text on e. EngineWorker.Analyze resets e first.
func analyze(e *engine.Engine, text string) *analysis {
	c := e.Compile(text, engine.ModeScript)
	return &analysis{
		text:    text,
		comp:    c,
		symbols: e.Context().Symbols.Symbols(),
		tokens:  compiler.Tokenize(text),
	}
}

func (a *analysis) symbol(name string) (vm.Symbol, bool) {
	for _, sym := range a.symbols {
		if sym.Name == name {
			return sym, true
		}
	}
	return vm.Symbol{}, false
}

// assignments returns the target tokens of every "name <-" in the
// document.
func (a *analysis) assignments(name string) []compiler.Token {
	var out []compiler.Token
	for i := 0; i+1 < len(a.tokens); i++ {
		tok := a.tokens[i]
		if tok.Code == compiler.TokenIdent && tok.Text == name && a.tokens[i+1].Code == compiler.TokenAssign {
			out = append(out, tok)
		}
	}
	return out
}

var keywordDocs = map[string]string{
	"print": "**print**(arg, ...)\n\nWrites each integer or string argument with no separator. Use `\"\\n\"` to end a line.",
	"clear": "**clear**()\n\nClears the output.",
	"mod":   "a **mod** b\n\nRemainder of integer division. Same precedence as `*` and `/`.",
	"true":  "**true** : bool",
	"false": "**false** : bool",
	"if":    "**if** is reserved.",
	"else":  "**else** is reserved.",
	"while": "**while** is reserved.",
	"read":  "**read** is reserved.",
}

func (s *LspServer) complete(a *analysis, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	lowerPrefix := strings.ToLower(prefix)

	// Variables
	for _, sym := range a.symbols {
		if strings.HasPrefix(strings.ToLower(sym.Name), lowerPrefix) {
			kind := protocol.CompletionItemKindVariable
			detail := sym.Type.String()
			name := sym.Name
			items = append(items, protocol.CompletionItem{
				Label:      name,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &name,
			})
		}
	}

	// Keywords
	keywords := compiler.Keywords()
	sort.Strings(keywords)
	for _, kw := range keywords {
		if compiler.IsReserved(kw) && kw != "print" {
			continue
		}
		if strings.HasPrefix(kw, lowerPrefix) {
			kind := protocol.CompletionItemKindKeyword
			detail := "keyword"
			word := kw
			items = append(items, protocol.CompletionItem{
				Label:      word,
				Kind:       &kind,
				Detail:     &detail,
				InsertText: &word,
			})
		}
	}

	return items
}

func (s *LspServer) hover(a *analysis, word string) *protocol.Hover {
	var b strings.Builder

	if doc, ok := keywordDocs[word]; ok {
		b.WriteString(doc)
	} else if sym, ok := a.symbol(word); ok {
		fmt.Fprintf(&b, "**%s** : %s\n\n", sym.Name, sym.Type)
		fmt.Fprintf(&b, "Storage offset %d, %d bytes", sym.Offset, sym.Type.Size())
		if assigns := a.assignments(word); len(assigns) > 0 {
			fmt.Fprintf(&b, "\n\nDeclared on line %d", assigns[0].Line)
			if len(assigns) > 1 {
				fmt.Fprintf(&b, ", assigned %d times", len(assigns))
			}
		}
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
	}
}

func (s *LspServer) definition(a *analysis, uri protocol.DocumentUri, word string) []protocol.Location {
	if _, ok := a.symbol(word); !ok {
		return nil
	}
	assigns := a.assignments(word)
	if len(assigns) == 0 {
		return nil
	}
	return []protocol.Location{{URI: uri, Range: tokenRange(assigns[0])}}
}

func (s *LspServer) references(a *analysis, uri protocol.DocumentUri, word string) []protocol.Location {
	if _, ok := a.symbol(word); !ok {
		return nil
	}
	var locations []protocol.Location
	for _, tok := range a.tokens {
		if tok.Code == compiler.TokenIdent && tok.Text == word {
			locations = append(locations, protocol.Location{URI: uri, Range: tokenRange(tok)})
		}
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	a, err := s.worker.Analyze(text)
	if err != nil {
		log.Errorf("diagnostics for %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(a),
	})
}

// diagnostics converts parse errors to LSP diagnostics. End-of-stream
// errors, which carry no token, are placed at the end of the document.
func diagnostics(a *analysis) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	for _, d := range a.comp.Diagnostics {
		severity := protocol.DiagnosticSeverityError
		if d.Level == compiler.LevelWarning {
			severity = protocol.DiagnosticSeverityWarning
		}
		source := lspName
		code := d.Type.String()

		rng := endOfText(a.text)
		if !d.Token.IsNone() {
			rng = tokenRange(d.Token)
		}
		out = append(out, protocol.Diagnostic{
			Range:    rng,
			Severity: &severity,
			Code:     &protocol.IntegerOrString{Value: code},
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// tokenRange converts a token's 1-based line and column into a zero-based
// range covering its source text.
func tokenRange(tok compiler.Token) protocol.Range {
	line := protocol.UInteger(tok.Line - 1)
	start := protocol.UInteger(tok.Col - 1)
	width := utf8.RuneCountInString(tok.Value())
	if width == 0 {
		width = 1
	}
	return protocol.Range{
		Start: protocol.Position{Line: line, Character: start},
		End:   protocol.Position{Line: line, Character: start + protocol.UInteger(width)},
	}
}

func endOfText(text string) protocol.Range {
	lines := strings.Split(text, "\n")
	last := len(lines) - 1
	pos := protocol.Position{
		Line:      protocol.UInteger(last),
		Character: protocol.UInteger(utf8.RuneCountInString(lines[last])),
	}
	return protocol.Range{Start: pos, End: pos}
}

// --- Text extraction helpers ---

func isWordChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isWordChar(rune(line[start-1])) {
		start--
	}
	end := col
	for end < len(line) && isWordChar(rune(line[end])) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}

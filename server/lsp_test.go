package server

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/tinyscript/engine"
	"github.com/chazu/tinyscript/vm"
)

var testWorker *EngineWorker

func TestMain(m *testing.M) {
	testWorker = NewEngineWorker(engine.New(&vm.BufferOutput{}, nil))
	code := m.Run()
	testWorker.Stop()
	os.Exit(code)
}

func newTestLSP() *LspServer {
	return &LspServer{
		worker: testWorker,
		docs:   make(map[string]string),
	}
}

func analyzeOnWorker(t *testing.T, text string) *analysis {
	t.Helper()
	a, err := testWorker.Analyze(text)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	return a
}

const testDoc = "count <- 1;\ncount <- count + 1;\nprint(count, total);\n"

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"x <- cou", 0, 8, "cou"},
		{"pri", 0, 3, "pri"},
		{"", 0, 0, ""},
		{"a <- 1;\nb <- a_b", 1, 8, "a_b"},
		{"hello", 0, 0, ""},
		{"single line", 5, 0, ""},
		{"print(x)", 0, 6, ""},
	}
	for _, tc := range tests {
		got := extractPrefix(tc.text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractPrefix(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		text string
		line uint32
		char uint32
		want string
	}{
		{"hello world", 0, 3, "hello"},
		{"hello world", 0, 5, "hello"},
		{"hello world", 0, 8, "world"},
		{"", 0, 0, ""},
		{"first\nmy_var <- 2;", 1, 2, "my_var"},
		{"x <- 1;", 0, 3, ""},
		{"x", 4, 0, ""},
	}
	for _, tc := range tests {
		got := extractWord(tc.text, protocol.Position{Line: tc.line, Character: tc.char})
		if got != tc.want {
			t.Errorf("extractWord(%q, %d:%d) = %q, want %q", tc.text, tc.line, tc.char, got, tc.want)
		}
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point at false")
	}
}

// ---------------------------------------------------------------------------
// Engine-backed logic (diagnostics, complete, hover, definition, references)
// ---------------------------------------------------------------------------

func TestLSP_Diagnostics(t *testing.T) {
	diags := diagnostics(analyzeOnWorker(t, testDoc))
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	d := diags[0]
	if d.Range.Start.Line != 2 || d.Range.Start.Character != 13 || d.Range.End.Character != 18 {
		t.Errorf("range = %+v, want line 2 chars 13-18", d.Range)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("severity should be Error")
	}
	if !strings.Contains(d.Message, "Unrecognized variable name") {
		t.Errorf("message = %q", d.Message)
	}
	if d.Code == nil || d.Code.Value != "Symbol reference" {
		t.Errorf("code = %+v, want Symbol reference", d.Code)
	}
}

func TestLSP_DiagnosticsEndOfStream(t *testing.T) {
	diags := diagnostics(analyzeOnWorker(t, "x <- 1;\ny <- x +"))
	if len(diags) == 0 {
		t.Fatal("no diagnostics")
	}
	want := protocol.Position{Line: 1, Character: 8}
	if got := diags[len(diags)-1].Range.Start; got != want {
		t.Errorf("start = %+v, want %+v", got, want)
	}
}

func TestLSP_DiagnosticsClean(t *testing.T) {
	diags := diagnostics(analyzeOnWorker(t, "a <- 2; print(a ^ 3);"))
	if diags == nil || len(diags) != 0 {
		t.Errorf("clean document diagnostics = %+v, want empty non-nil slice", diags)
	}
}

func TestLSP_AnalysisIsolated(t *testing.T) {
	analyzeOnWorker(t, "leftover <- 1;")
	a := analyzeOnWorker(t, "print(leftover);")
	if len(a.comp.Diagnostics) != 1 {
		t.Errorf("symbols leaked between analyses: %v", a.comp.Messages())
	}
}

func TestLSP_Complete(t *testing.T) {
	lsp := newTestLSP()
	a := analyzeOnWorker(t, testDoc)

	items := lsp.complete(a, "co")
	if len(items) != 1 || items[0].Label != "count" {
		t.Fatalf("complete(co) = %+v, want [count]", items)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindVariable {
		t.Error("count completion should have Kind=Variable")
	}
	if items[0].Detail == nil || *items[0].Detail != "int4" {
		t.Error("count completion detail should be int4")
	}

	items = lsp.complete(a, "pr")
	if len(items) != 1 || items[0].Label != "print" {
		t.Fatalf("complete(pr) = %+v, want [print]", items)
	}
	if *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("print completion should have Kind=Keyword")
	}

	if items := lsp.complete(a, "wh"); len(items) != 0 {
		t.Errorf("reserved words without a grammar should not complete: %+v", items)
	}
}

func TestLSP_Hover_Variable(t *testing.T) {
	lsp := newTestLSP()
	hover := lsp.hover(analyzeOnWorker(t, testDoc), "count")
	if hover == nil {
		t.Fatal("hover for 'count' should return a result")
	}
	mc, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	for _, want := range []string{"**count** : int4", "offset 0", "line 1", "assigned 2 times"} {
		if !strings.Contains(mc.Value, want) {
			t.Errorf("hover %q missing %q", mc.Value, want)
		}
	}
}

func TestLSP_Hover_Keyword(t *testing.T) {
	lsp := newTestLSP()
	hover := lsp.hover(analyzeOnWorker(t, testDoc), "mod")
	if hover == nil {
		t.Fatal("hover for 'mod' should return a result")
	}
	if mc := hover.Contents.(protocol.MarkupContent); !strings.Contains(mc.Value, "Remainder") {
		t.Errorf("hover = %q", mc.Value)
	}
}

func TestLSP_Hover_UnknownWord(t *testing.T) {
	lsp := newTestLSP()
	if hover := lsp.hover(analyzeOnWorker(t, testDoc), "total"); hover != nil {
		t.Error("hover for an undeclared name should return nil")
	}
}

func TestLSP_Definition(t *testing.T) {
	lsp := newTestLSP()
	uri := protocol.DocumentUri("file:///test.ts")
	locs := lsp.definition(analyzeOnWorker(t, testDoc), uri, "count")
	if len(locs) != 1 {
		t.Fatalf("definition = %+v, want one location", locs)
	}
	if locs[0].URI != uri || locs[0].Range.Start.Line != 0 || locs[0].Range.Start.Character != 0 {
		t.Errorf("definition = %+v, want %s at 0:0", locs[0], uri)
	}
	if locs[0].Range.End.Character != 5 {
		t.Errorf("definition end = %d, want 5", locs[0].Range.End.Character)
	}

	if locs := lsp.definition(analyzeOnWorker(t, testDoc), uri, "total"); locs != nil {
		t.Errorf("definition of undeclared name = %+v", locs)
	}
}

func TestLSP_References(t *testing.T) {
	lsp := newTestLSP()
	uri := protocol.DocumentUri("file:///test.ts")
	locs := lsp.references(analyzeOnWorker(t, testDoc), uri, "count")
	if len(locs) != 4 {
		t.Fatalf("references = %d, want 4", len(locs))
	}
	last := locs[3].Range.Start
	if last.Line != 2 || last.Character != 6 {
		t.Errorf("last reference at %+v, want 2:6", last)
	}

	if locs := lsp.references(analyzeOnWorker(t, testDoc), uri, "nosuch"); len(locs) != 0 {
		t.Errorf("references for unknown name = %d, want 0", len(locs))
	}
}

func TestWorker_RecoversPanics(t *testing.T) {
	_, err := testWorker.submit(func(e *engine.Engine) (interface{}, error) {
		panic("boom")
	}, false)
	if err == nil || err.Error() != "boom" {
		t.Errorf("submit(panic) error = %v, want boom", err)
	}
	if _, err := testWorker.Analyze("x <- 1;"); err != nil {
		t.Errorf("worker unusable after panic: %v", err)
	}
}

func TestWorker_AnalyzeResetsEngine(t *testing.T) {
	w := NewEngineWorker(engine.New(nil, nil))
	defer w.Stop()

	declared, err := w.submit(func(e *engine.Engine) (interface{}, error) {
		e.Compile("stale <- 1;", engine.ModeScript)
		return e.Context().Symbols.Len(), nil
	}, false)
	if err != nil || declared.(int) != 1 {
		t.Fatalf("setup declared %v, %v", declared, err)
	}
	a, err := w.Analyze("fresh <- 2;")
	if err != nil {
		t.Fatal(err)
	}
	if len(a.symbols) != 1 || a.symbols[0].Name != "fresh" {
		t.Errorf("symbols = %+v, want only fresh", a.symbols)
	}
}

func TestWorker_StoppedReturnsError(t *testing.T) {
	w := NewEngineWorker(engine.New(nil, nil))
	w.Stop()
	w.Stop()

	done := make(chan error, 1)
	go func() {
		_, err := w.Analyze("x <- 1;")
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrWorkerStopped) {
			t.Errorf("Analyze after Stop = %v, want ErrWorkerStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Analyze after Stop blocked")
	}
}

func TestLSP_ShutdownStopsWorker(t *testing.T) {
	lsp := NewLSP(engine.New(nil, nil))
	if err := lsp.shutdown(nil); err != nil {
		t.Fatal(err)
	}
	lsp.docs["file:///a.ts"] = "x <- 1;"
	params := &protocol.HoverParams{}
	params.TextDocument.URI = "file:///a.ts"
	hover, err := lsp.textDocumentHover(nil, params)
	if hover != nil || err != nil {
		t.Errorf("hover after shutdown = %v, %v", hover, err)
	}
	if _, err := lsp.worker.Analyze("x <- 1;"); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("Analyze after shutdown = %v, want ErrWorkerStopped", err)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := newTestLSP()

	// Simulate didOpen
	lsp.mu.Lock()
	lsp.docs["file:///test.ts"] = "x <- 1;"
	lsp.mu.Unlock()

	text, ok := lsp.document("file:///test.ts")
	if !ok {
		t.Error("document should be stored after open")
	}
	if text != "x <- 1;" {
		t.Errorf("document text = %q, want %q", text, "x <- 1;")
	}

	// Simulate didClose
	lsp.mu.Lock()
	delete(lsp.docs, "file:///test.ts")
	lsp.mu.Unlock()

	if _, ok := lsp.document("file:///test.ts"); ok {
		t.Error("document should be removed after close")
	}
}

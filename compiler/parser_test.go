package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/tinyscript/vm"
)

func parseScript(src string) (*ParseResult, *vm.Context) {
	ctx := vm.NewContext()
	p := NewParser(NewTokenStream(NewLexerString(src), 0), ctx)
	return p.ParseScript(), ctx
}

func parseCommandLine(src string) (*ParseResult, *vm.Context) {
	ctx := vm.NewContext()
	p := NewParser(NewTokenStream(NewLexerString(src), 0), ctx)
	return p.ParseCommandLine(), ctx
}

func TestParserValidScripts(t *testing.T) {
	tests := []struct {
		input      string
		statements int
	}{
		{"", 0},
		{";;;", 0},
		{"1;", 1},
		{"x <- 5;", 1},
		{"x <- 5; print(x);", 2},
		{"print();", 1},
		{`print("a", 1, "b");`, 1},
		{"clear();", 1},
		{"x <- 2; y <- x * (x + 3) mod 4 - -x ^ 2;", 2},
		{"x <- 1; x <- x + 1;", 2},
		{"+3;", 1},
		{`s <- 1; print("s =", s);`, 2},
	}
	for _, tc := range tests {
		res, _ := parseScript(tc.input)
		if res.Failed || len(res.Diagnostics) > 0 {
			t.Errorf("ParseScript(%q) failed: %v", tc.input, res.Messages())
			continue
		}
		if got := len(res.Tree.Statements()); got != tc.statements {
			t.Errorf("ParseScript(%q) statements = %d, want %d", tc.input, got, tc.statements)
		}
	}
}

func TestParserTreeShape(t *testing.T) {
	res, _ := parseScript("x <- 1 + 2 * 3;")
	if res.Failed {
		t.Fatalf("parse failed: %v", res.Messages())
	}
	want := strings.Join([]string{
		"Block (1 statements)",
		"  Assign x@0 : int4 [1:1]",
		"    Binary + : int4 [1:8]",
		"      Int 1 : int4 [1:6]",
		"      Binary * : int4 [1:12]",
		"        Int 2 : int4 [1:10]",
		"        Int 3 : int4 [1:14]",
	}, "\n")
	if got := res.Tree.String(); got != want {
		t.Errorf("Tree =\n%s\nwant\n%s", got, want)
	}
}

func TestParserAssociativity(t *testing.T) {
	res, _ := parseScript("2 - 3 - 4;")
	tree := res.Tree
	root := tree.Node(tree.Statements()[0])
	if root.Op != OperatorSub {
		t.Fatalf("root op = %s, want -", root.Op)
	}
	if tree.Node(root.Children[0]).Kind != NodeBinary {
		t.Error("subtraction should nest to the left")
	}

	res, _ = parseScript("2 ^ 3 ^ 2;")
	tree = res.Tree
	root = tree.Node(tree.Statements()[0])
	if root.Op != OperatorExp {
		t.Fatalf("root op = %s, want ^", root.Op)
	}
	if tree.Node(root.Children[1]).Kind != NodeBinary {
		t.Error("exponentiation should nest to the right")
	}
	if tree.Node(root.Children[0]).Kind != NodeInt {
		t.Error("left operand of ^ should be the literal 2")
	}
}

func TestParserUnary(t *testing.T) {
	res, _ := parseScript("-4; +4;")
	stmts := res.Tree.Statements()
	if len(stmts) != 2 {
		t.Fatalf("statements = %d", len(stmts))
	}
	if k := res.Tree.Node(stmts[0]).Kind; k != NodeNeg {
		t.Errorf("-4 kind = %s, want Neg", k)
	}
	if k := res.Tree.Node(stmts[1]).Kind; k != NodeInt {
		t.Errorf("+4 kind = %s, want Int", k)
	}
}

func TestParserDiagnostics(t *testing.T) {
	tests := []struct {
		input string
		typ   ErrType
		msg   string
	}{
		{"print(y);", ErrSymbolRef, MsgUndefinedSymbol},
		{"x <- y;", ErrSymbolRef, MsgUndefinedSymbol},
		{"x <- ;", ErrAssignment, MsgUnknownType},
		{`x <- "a";`, ErrAssignment, MsgAssignMismatch},
		{"x <- true;", ErrAssignment, MsgAssignMismatch},
		{"1 + true;", ErrBoolean, MsgBinaryTypeMismatch},
		{`1 + "a";`, ErrArithmetic, MsgMissingBinaryRHS},
		{"true + false;", ErrBoolean, MsgTypeMismatch},
		{"-true;", ErrBoolean, MsgTypeMismatch},
		{"print(true);", ErrMethodRef, MsgTypeMismatch},
		{"print 1;", ErrMethodRef, MsgMissingLParen},
		{"print(1 2);", ErrArithmetic, MsgInvalidNumeric},
		{"print(1; 2);", ErrMethodRef, MsgListSeparator},
		{"clear(1);", ErrMethodRef, MsgMissingRParen},
		{"1 2;", ErrArithmetic, MsgInvalidNumeric},
		{"1 +;", ErrArithmetic, MsgMissingBinaryRHS},
		{"2 ^;", ErrArithmetic, MsgMissingBinaryRHS},
		{"- -1;", ErrArithmetic, MsgUnexpectedArith},
		{"-;", ErrArithmetic, MsgMissingUnaryRHS},
		{"();", ErrArithmetic, MsgUnexpectedArith},
		{"(1 + 2;", ErrArithmetic, MsgUnmatchedRParen},
		{"1 + 2);", ErrArithmetic, MsgUnmatchedLParen},
		{"2147483648;", ErrArithmetic, MsgIntegerRange},
		{"if;", ErrIllegalExpr, MsgReservedKeyword},
		{"while;", ErrIllegalExpr, MsgReservedKeyword},
		{"{ };", ErrIllegalExpr, MsgUnexpectedKeyword},
		{"1 ~ 2;", ErrIllegalExpr, MsgUnexpectedKeyword},
	}
	for _, tc := range tests {
		res, _ := parseScript(tc.input)
		if !res.Failed {
			t.Errorf("ParseScript(%q) succeeded, want %q", tc.input, tc.msg)
			continue
		}
		if len(res.Diagnostics) == 0 {
			t.Errorf("ParseScript(%q) has no diagnostics", tc.input)
			continue
		}
		d := res.Diagnostics[0]
		if d.Message != tc.msg || d.Type != tc.typ {
			t.Errorf("ParseScript(%q) = %s %q, want %s %q", tc.input, d.Type, d.Message, tc.typ, tc.msg)
		}
		if res.Tree == nil {
			t.Errorf("ParseScript(%q) aborted, want recovery", tc.input)
		}
	}
}

func TestParserDiagnosticFormat(t *testing.T) {
	res, _ := parseScript("print(y);")
	want := "Error:Type=Symbol reference [1:7]: Unrecognized variable name (y)."
	if got := res.Messages(); len(got) != 1 || got[0] != want {
		t.Errorf("Messages() = %q, want [%q]", got, want)
	}

	res, _ = parseScript(`x <- 1; print(x, x "s");`)
	want = `Error:Type=Method reference [1:20]: Expected argument list separator ("s").`
	if got := res.Messages(); len(got) != 1 || got[0] != want {
		t.Errorf("Messages() = %q, want [%q]", got, want)
	}

	res, _ = parseScript("x <- 1")
	want = "Error:Type=Input: " + MsgMissingTerminator + "."
	if got := res.Messages(); len(got) != 1 || got[0] != want {
		t.Errorf("Messages() = %q, want [%q]", got, want)
	}
	if res.Err() == nil {
		t.Error("Err() = nil with diagnostics")
	}
}

func TestParserRecovery(t *testing.T) {
	res, ctx := parseScript("x <- 1; y <- ; z <- 3;")
	if !res.Failed {
		t.Fatal("Failed = false")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("diagnostics = %v", res.Messages())
	}
	if d := res.Diagnostics[0]; d.Token.Line != 1 || d.Token.Col != 14 {
		t.Errorf("diagnostic at [%d:%d], want [1:14]", d.Token.Line, d.Token.Col)
	}
	if res.Tree == nil {
		t.Fatal("tree discarded")
	}
	stmts := res.Tree.Statements()
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want 2\n%s", len(stmts), res.Tree)
	}
	for i, name := range []string{"x", "z"} {
		if got := res.Tree.Node(stmts[i]).Symbol.Name; got != name {
			t.Errorf("statement %d assigns %q, want %q", i, got, name)
		}
	}
	if ctx.Symbols.IsDeclared("y") {
		t.Error("y declared by a rejected statement")
	}
	// Rejected statements leave no nodes behind.
	count := 0
	res.Tree.Walk(res.Tree.Root, func(NodeID, *Node, int) { count++ })
	if count != len(res.Tree.Nodes) {
		t.Errorf("tree reaches %d nodes, arena holds %d", count, len(res.Tree.Nodes))
	}
}

func TestParserRecoveryMultiple(t *testing.T) {
	res, _ := parseScript("1 +; print(2); (3; print(4);")
	if len(res.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v", res.Messages())
	}
	if got := len(res.Tree.Statements()); got != 2 {
		t.Errorf("statements = %d, want 2", got)
	}
}

func TestParserEndOfStreamAborts(t *testing.T) {
	tests := []string{
		"x <- 1",
		"print(1",
		"print(1,",
		"1 +",
		"x <- 1; (2 + 3",
		"1 2",
	}
	for _, input := range tests {
		res, _ := parseScript(input)
		if res.Tree != nil {
			t.Errorf("ParseScript(%q) kept a tree, want abort", input)
		}
		if !res.Failed {
			t.Errorf("ParseScript(%q) Failed = false", input)
		}
		if len(res.Diagnostics) == 0 {
			t.Errorf("ParseScript(%q) has no diagnostics", input)
			continue
		}
		last := res.Diagnostics[len(res.Diagnostics)-1]
		if !last.EOS || last.Type != ErrInput {
			t.Errorf("ParseScript(%q) last diagnostic = %v, want end of stream", input, last)
		}
	}
}

func TestParserDeclareOnSuccess(t *testing.T) {
	res, ctx := parseScript(`x <- 1; y <- "a"; x <- y;`)
	if len(res.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %v", res.Messages())
	}
	if d := res.Diagnostics[0]; d.Message != MsgAssignMismatch {
		t.Errorf("first diagnostic = %q, want %q", d.Message, MsgAssignMismatch)
	}
	if d := res.Diagnostics[1]; d.Message != MsgUndefinedSymbol || d.Token.Text != "y" {
		t.Errorf("second diagnostic = %v, want undefined y", d)
	}
	if !ctx.Symbols.IsDeclared("x") || ctx.Symbols.IsDeclared("y") {
		t.Errorf("symbols = %v, want only x", ctx.Symbols.Symbols())
	}

	_, ctx = parseScript("x <- x;")
	if ctx.Symbols.IsDeclared("x") {
		t.Error("self-referencing assignment declared x")
	}
}

func TestParserVariableStorage(t *testing.T) {
	_, ctx := parseScript("a <- 1; b <- 2; a <- 3;")
	a, _ := ctx.Symbols.Lookup("a")
	b, _ := ctx.Symbols.Lookup("b")
	if a.Offset != 0 || b.Offset != 4 {
		t.Errorf("offsets = %d, %d, want 0, 4", a.Offset, b.Offset)
	}
	if a.Type != vm.TypeInt4 {
		t.Errorf("a type = %s, want int4", a.Type)
	}
	if ctx.Storage.Size() != 8 {
		t.Errorf("storage size = %d, want 8", ctx.Storage.Size())
	}
}

func TestParserCommandLine(t *testing.T) {
	tests := []struct {
		input    string
		rejected bool
	}{
		{"x <- 2;", false},
		{"1 + 2;", false},
		{"print(1);", true},
		{"x <- 1; while;", true},
		{"read;", true},
		{"clear();", false},
	}
	for _, tc := range tests {
		res, _ := parseCommandLine(tc.input)
		gotRejected := len(res.Diagnostics) > 0 && res.Diagnostics[0].Message == MsgCommandLine
		if gotRejected != tc.rejected {
			t.Errorf("ParseCommandLine(%q) rejected = %v, want %v (%v)", tc.input, gotRejected, tc.rejected, res.Messages())
		}
		if tc.rejected {
			if !res.Failed || res.Tree == nil || len(res.Tree.Statements()) != 0 {
				t.Errorf("ParseCommandLine(%q) should fail with an empty tree", tc.input)
			}
		}
	}
}

func TestParserCommandLineNoDeclaration(t *testing.T) {
	res, ctx := parseCommandLine("x <- 1; print(x);")
	if !res.Failed {
		t.Fatal("command line with print accepted")
	}
	if ctx.Symbols.IsDeclared("x") {
		t.Error("rejected command line declared x")
	}
	if d := res.Diagnostics[0]; d.Token.Col != 9 {
		t.Errorf("diagnostic col = %d, want 9", d.Token.Col)
	}
}

func TestParserSmallStreamBuffer(t *testing.T) {
	ctx := vm.NewContext()
	src := "total <- 1 + 2 * 3 - 4; total <- total + (1 + (2 + (3 + 4))); print(total, \"done\");"
	p := NewParser(NewTokenStream(NewLexerString(src), 1), ctx)
	res := p.ParseScript()
	if res.Failed {
		t.Fatalf("parse failed: %v", res.Messages())
	}
	if got := len(res.Tree.Statements()); got != 3 {
		t.Errorf("statements = %d, want 3", got)
	}
}

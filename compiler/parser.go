package compiler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/chazu/tinyscript/vm"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent over a TokenStream
// ---------------------------------------------------------------------------
//
// statement   → print | clear | assignment | expression ';' | ';'
// print       → 'print' '(' [ rvalue { ',' rvalue } ] ')' ';'
// clear       → 'clear' '(' ')' ';'
// assignment  → IDENT '<-' rvalue ';'
// rvalue      → STRING | addSub
// addSub      → multDivMod { ('+' | '-') multDivMod }
// multDivMod  → power { ('*' | '/' | 'mod') power }
// power       → negatable [ '^' power ]
// negatable   → '(' addSub ')' | ('-' | '+') negatable | varnumeric
// varnumeric  → INTEGER | 'true' | 'false' | IDENT

// ParseResult is the outcome of one parse. Tree is nil when the parse was
// aborted by an unexpected end of stream. Failed is set when any statement
// was rejected; Tree then holds only the statements that parsed.
type ParseResult struct {
	Tree        *Tree
	Diagnostics []*ParseError
	Failed      bool
}

// Messages returns the formatted diagnostics.
func (r *ParseResult) Messages() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = d.Error()
	}
	return out
}

// Err joins every diagnostic into one error, or returns nil.
func (r *ParseResult) Err() error {
	if len(r.Diagnostics) == 0 {
		return nil
	}
	return errors.New(strings.Join(r.Messages(), "\n"))
}

// Parser builds a code-generation tree. Variables are resolved against,
// and new variables declared in, the context's symbol table.
type Parser struct {
	ts     *TokenStream
	ctx    *vm.Context
	tree   *Tree
	diags  []*ParseError
	failed bool
}

// NewParser creates a parser reading from ts.
func NewParser(ts *TokenStream, ctx *vm.Context) *Parser {
	return &Parser{ts: ts, ctx: ctx}
}

func (p *Parser) reset() {
	p.tree = newTree()
	p.diags = nil
	p.failed = false
}

func (p *Parser) result() *ParseResult {
	return &ParseResult{
		Tree:        p.tree,
		Diagnostics: p.diags,
		Failed:      p.failed || p.tree == nil,
	}
}

// ParseScript parses a statement block.
func (p *Parser) ParseScript() *ParseResult {
	p.reset()
	p.block()
	return p.result()
}

// ParseCommandLine parses command-line input: assignments and expressions
// only. Input that mentions a reserved word anywhere is rejected without
// parsing.
func (p *Parser) ParseCommandLine() *ParseResult {
	p.reset()
	if tok, found := p.findReserved(); found {
		p.report(newError(ErrIllegalExpr, MsgCommandLine, tok))
		p.failed = true
		return p.result()
	}
	p.block()
	return p.result()
}

func (p *Parser) findReserved() (Token, bool) {
	first := p.ts.Read()
	if first.IsNone() {
		return NoneToken, false
	}
	p.ts.Mark(first)
	defer func() {
		p.ts.Rewind(first)
		p.ts.Unmark()
	}()
	for tok := first; !tok.IsNone(); tok = p.ts.Read() {
		if tok.Code == TokenIdent && IsReserved(tok.Text) {
			return tok, true
		}
	}
	return NoneToken, false
}

// block parses statements until the stream ends. A rejected statement is
// reported and skipped through its terminating ';'.
func (p *Parser) block() {
	for !p.ts.AtEOS() {
		first := p.ts.Read()
		if first.Code == TokenSemicolon {
			continue
		}
		p.unread(first)
		p.ts.Mark(first)
		mark := len(p.tree.Nodes)

		id, err := p.statement()
		if err != nil {
			p.tree.truncate(mark)
			ok := p.recover(err, first)
			p.ts.Unmark()
			if !ok {
				p.tree = nil
				return
			}
			continue
		}
		p.ts.Unmark()
		p.tree.attach(p.tree.Root, id)
	}
}

// recover reports err and resynchronizes after the statement starting at
// first. It reports false when the parse must be abandoned.
func (p *Parser) recover(err error, first Token) bool {
	var pe *ParseError
	if !errors.As(err, &pe) {
		pe = newError(ErrInput, err.Error(), first)
	}
	p.report(pe)
	if pe.EOS {
		return false
	}
	p.failed = true

	p.ts.Rewind(first)
	for {
		tok := p.ts.Read()
		switch {
		case tok.Code == TokenSemicolon:
			return true
		case tok.IsNone():
			p.report(eosError(MsgUnexpectedEOS))
			return false
		}
	}
}

func (p *Parser) report(pe *ParseError) {
	log.Debugf("parse: %s", pe)
	p.diags = append(p.diags, pe)
}

func (p *Parser) unread(tok Token) {
	if err := p.ts.Unread(tok); err != nil {
		log.Errorf("parse: %s", err)
	}
}

func (p *Parser) peek() Token {
	tok := p.ts.Read()
	p.unread(tok)
	return tok
}

func (p *Parser) typeOf(id NodeID) vm.DataType {
	return p.tree.Nodes[id].Type
}

func eos() error {
	return eosError(MsgUnexpectedEOS)
}

// expect consumes one token of the given code.
func (p *Parser) expect(code TokenCode, typ ErrType, msg string) (Token, error) {
	tok := p.ts.Read()
	switch {
	case tok.IsNone():
		return tok, eos()
	case tok.Code != code:
		return tok, newError(typ, msg, tok)
	}
	return tok, nil
}

// terminator consumes the ';' ending a statement.
func (p *Parser) terminator() error {
	tok := p.ts.Read()
	switch tok.Code {
	case TokenSemicolon:
		return nil
	case TokenNone:
		return eosError(MsgMissingTerminator)
	case TokenRParen:
		return newError(ErrArithmetic, MsgUnmatchedLParen, tok)
	}
	return newError(ErrIllegalExpr, MsgUnexpectedKeyword, tok)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) statement() (NodeID, error) {
	tok := p.ts.Read()
	switch {
	case tok.IsKeyword("print"):
		return p.print(tok)
	case tok.IsKeyword("clear"):
		return p.clear(tok)
	}
	p.unread(tok)

	id, err := p.assignment(tok)
	if err != nil || id != NoNode {
		return id, err
	}
	return p.expressionStatement()
}

func (p *Parser) print(kw Token) (NodeID, error) {
	if _, err := p.expect(TokenLParen, ErrMethodRef, MsgMissingLParen); err != nil {
		return NoNode, err
	}
	id := p.tree.add(Node{Kind: NodePrint, Token: kw})

	if next := p.ts.Read(); next.Code != TokenRParen {
		p.unread(next)
		for {
			argTok := p.peek()
			if argTok.IsNone() {
				return NoNode, eos()
			}
			arg, err := p.rvalue()
			if err != nil {
				return NoNode, err
			}
			if arg == NoNode {
				return NoNode, newError(ErrIllegalExpr, MsgMethodArgument, argTok)
			}
			if t := p.typeOf(arg); t != vm.TypeInt4 && t != vm.TypeImmStr {
				return NoNode, newError(ErrMethodRef, MsgTypeMismatch, argTok)
			}
			p.tree.attach(id, arg)

			sep := p.ts.Read()
			if sep.Code == TokenRParen {
				break
			}
			switch sep.Code {
			case TokenComma:
				continue
			case TokenNone:
				return NoNode, eos()
			}
			return NoNode, newError(ErrMethodRef, MsgListSeparator, sep)
		}
	}

	if err := p.terminator(); err != nil {
		return NoNode, err
	}
	return id, nil
}

func (p *Parser) clear(kw Token) (NodeID, error) {
	if _, err := p.expect(TokenLParen, ErrMethodRef, MsgMissingLParen); err != nil {
		return NoNode, err
	}
	if _, err := p.expect(TokenRParen, ErrMethodRef, MsgMissingRParen); err != nil {
		return NoNode, err
	}
	if err := p.terminator(); err != nil {
		return NoNode, err
	}
	return p.tree.add(Node{Kind: NodeClear, Token: kw}), nil
}

// assignment is speculative: if the statement does not start with
// IDENT '<-' the stream is rewound to begin and NoNode is returned. The
// target is declared only once the whole statement is accepted.
func (p *Parser) assignment(begin Token) (NodeID, error) {
	target := p.ts.Read()
	if target.Code != TokenIdent || IsKeyword(target.Text) {
		p.ts.Rewind(begin)
		return NoNode, nil
	}
	op := p.ts.Read()
	if op.Code != TokenAssign {
		p.ts.Rewind(begin)
		return NoNode, nil
	}

	next := p.peek()
	if next.IsNone() {
		return NoNode, eos()
	}
	rv, err := p.rvalue()
	if err != nil {
		return NoNode, err
	}
	if rv == NoNode {
		return NoNode, newError(ErrAssignment, MsgUnknownType, next)
	}
	if err := p.terminator(); err != nil {
		return NoNode, err
	}

	sym, declared := p.ctx.Symbols.Lookup(target.Text)
	want := vm.TypeInt4
	if declared {
		want = sym.Type
	}
	if p.typeOf(rv) != want {
		return NoNode, newError(ErrAssignment, MsgAssignMismatch, op)
	}
	if !declared {
		sym, err = p.ctx.Symbols.Declare(target.Text, want)
		if err != nil {
			return NoNode, newError(ErrAssignment, err.Error(), target)
		}
		log.Debugf("parse: declared %s %s @%d", sym.Name, sym.Type, sym.Offset)
	}

	id := p.tree.add(Node{Kind: NodeAssign, Token: target, Type: sym.Type, Symbol: sym})
	p.tree.attach(id, rv)
	return id, nil
}

func (p *Parser) expressionStatement() (NodeID, error) {
	first := p.peek()
	id, err := p.rvalue()
	if err != nil {
		return NoNode, err
	}
	if id == NoNode {
		switch {
		case first.IsNone():
			return NoNode, eos()
		case first.Code == TokenIdent && IsKeyword(first.Text):
			return NoNode, newError(ErrIllegalExpr, MsgReservedKeyword, first)
		}
		return NoNode, newError(ErrIllegalExpr, MsgUnexpectedKeyword, first)
	}
	if err := p.terminator(); err != nil {
		return NoNode, err
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) rvalue() (NodeID, error) {
	tok := p.ts.Read()
	if tok.Code == TokenString {
		return p.tree.add(Node{Kind: NodeString, Token: tok, Type: vm.TypeImmStr, Str: tok.Text}), nil
	}
	p.unread(tok)
	return p.addSub()
}

func addSubOperator(tok Token) (Operator, bool) {
	switch tok.Code {
	case TokenPlus:
		return OperatorAdd, true
	case TokenMinus:
		return OperatorSub, true
	}
	return 0, false
}

func multDivModOperator(tok Token) (Operator, bool) {
	switch {
	case tok.Code == TokenMult:
		return OperatorMul, true
	case tok.Code == TokenDiv:
		return OperatorDiv, true
	case tok.IsKeyword("mod"):
		return OperatorMod, true
	}
	return 0, false
}

func (p *Parser) addSub() (NodeID, error) {
	return p.leftAssoc(p.multDivMod, addSubOperator)
}

func (p *Parser) multDivMod() (NodeID, error) {
	return p.leftAssoc(p.power, multDivModOperator)
}

// leftAssoc parses operand { op operand }, folding each new operator over
// the tree built so far.
func (p *Parser) leftAssoc(operand func() (NodeID, error), operator func(Token) (Operator, bool)) (NodeID, error) {
	left, err := operand()
	if err != nil || left == NoNode {
		return left, err
	}
	for {
		tok := p.ts.Read()
		op, ok := operator(tok)
		if !ok {
			if err := p.numericOutOfSequence(tok); err != nil {
				return NoNode, err
			}
			p.unread(tok)
			return left, nil
		}
		right, err := operand()
		if err != nil {
			return NoNode, err
		}
		if right == NoNode {
			return NoNode, newError(ErrArithmetic, MsgMissingBinaryRHS, tok)
		}
		if left, err = p.binary(op, tok, left, right); err != nil {
			return NoNode, err
		}
	}
}

// power is right-associative: the right operand is itself a power.
func (p *Parser) power() (NodeID, error) {
	left, err := p.negatable()
	if err != nil || left == NoNode {
		return left, err
	}
	tok := p.ts.Read()
	if tok.Code != TokenExp {
		if err := p.numericOutOfSequence(tok); err != nil {
			return NoNode, err
		}
		p.unread(tok)
		return left, nil
	}
	right, err := p.power()
	if err != nil {
		return NoNode, err
	}
	if right == NoNode {
		return NoNode, newError(ErrArithmetic, MsgMissingBinaryRHS, tok)
	}
	return p.binary(OperatorExp, tok, left, right)
}

func (p *Parser) numericOutOfSequence(tok Token) error {
	if tok.Code == TokenInteger || tok.Code == TokenReal {
		return newError(ErrArithmetic, MsgInvalidNumeric, tok)
	}
	return nil
}

// binary type-checks and builds a NodeBinary. Both operands must be Int4.
func (p *Parser) binary(op Operator, tok Token, left, right NodeID) (NodeID, error) {
	lt, rt := p.typeOf(left), p.typeOf(right)
	typ := ErrArithmetic
	if lt == vm.TypeBool || rt == vm.TypeBool {
		typ = ErrBoolean
	}
	if lt != rt {
		return NoNode, newError(typ, MsgBinaryTypeMismatch, tok)
	}
	if lt != vm.TypeInt4 {
		return NoNode, newError(typ, MsgTypeMismatch, tok)
	}
	id := p.tree.add(Node{Kind: NodeBinary, Token: tok, Type: lt, Op: op})
	p.tree.attach(id, left)
	p.tree.attach(id, right)
	return id, nil
}

func (p *Parser) negatable() (NodeID, error) {
	tok := p.ts.Read()
	switch tok.Code {
	case TokenNone:
		return NoNode, eos()

	case TokenLParen:
		inner, err := p.addSub()
		if err != nil {
			return NoNode, err
		}
		if inner == NoNode {
			next := p.peek()
			if next.IsNone() {
				return NoNode, eos()
			}
			return NoNode, newError(ErrArithmetic, MsgUnexpectedArith, next)
		}
		closing := p.ts.Read()
		switch closing.Code {
		case TokenRParen:
			return inner, nil
		case TokenNone:
			return NoNode, eos()
		}
		return NoNode, newError(ErrArithmetic, MsgUnmatchedRParen, tok)

	case TokenMinus, TokenPlus:
		next := p.ts.Read()
		switch next.Code {
		case TokenNone:
			return NoNode, eos()
		case TokenPlus, TokenMinus:
			return NoNode, newError(ErrArithmetic, MsgUnexpectedArith, next)
		}
		p.unread(next)

		sub, err := p.negatable()
		if err != nil {
			return NoNode, err
		}
		if sub == NoNode {
			return NoNode, newError(ErrArithmetic, MsgMissingUnaryRHS, tok)
		}
		if t := p.typeOf(sub); t != vm.TypeInt4 {
			typ := ErrArithmetic
			if t == vm.TypeBool {
				typ = ErrBoolean
			}
			return NoNode, newError(typ, MsgTypeMismatch, tok)
		}
		if tok.Code == TokenPlus {
			return sub, nil
		}
		id := p.tree.add(Node{Kind: NodeNeg, Token: tok, Type: vm.TypeInt4})
		p.tree.attach(id, sub)
		return id, nil
	}

	p.unread(tok)
	return p.varnumeric()
}

func (p *Parser) varnumeric() (NodeID, error) {
	tok := p.ts.Read()
	switch tok.Code {
	case TokenNone:
		return NoNode, eos()

	case TokenInteger:
		v, err := strconv.ParseInt(tok.Text, 10, 32)
		if err != nil {
			return NoNode, newError(ErrArithmetic, MsgIntegerRange, tok)
		}
		return p.tree.add(Node{Kind: NodeInt, Token: tok, Type: vm.TypeInt4, Int: int32(v)}), nil

	case TokenIdent:
		switch tok.Text {
		case "true", "false":
			return p.tree.add(Node{Kind: NodeBool, Token: tok, Type: vm.TypeBool, Bool: tok.Text == "true"}), nil
		}
		if IsKeyword(tok.Text) {
			p.unread(tok)
			return NoNode, nil
		}
		sym, ok := p.ctx.Symbols.Lookup(tok.Text)
		if !ok {
			return NoNode, newError(ErrSymbolRef, MsgUndefinedSymbol, tok)
		}
		return p.tree.add(Node{Kind: NodeVar, Token: tok, Type: sym.Type, Symbol: sym}), nil
	}

	p.unread(tok)
	return NoNode, nil
}

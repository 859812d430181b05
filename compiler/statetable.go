package compiler

import "unicode"

// ---------------------------------------------------------------------------
// Lexer automaton
// ---------------------------------------------------------------------------

// charClass is a transition predicate.
type charClass func(r rune) bool

func is(c rune) charClass        { return func(r rune) bool { return r == c } }
func oneOf(set string) charClass { return func(r rune) bool { return containsRune(set, r) } }
func not(set string) charClass   { return func(r rune) bool { return !containsRune(set, r) } }

func containsRune(set string, r rune) bool {
	for _, c := range set {
		if c == r {
			return true
		}
	}
	return false
}

func isSpace(r rune) bool      { return unicode.IsSpace(r) }
func isDigit(r rune) bool      { return r >= '0' && r <= '9' }
func isIdentStart(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isIdentPart(r rune) bool  { return isIdentStart(r) || isDigit(r) }
func isExpMark(r rune) bool    { return r == 'e' || r == 'E' }

const newlines = "\n\r"

type transition struct {
	match charClass
	next  int
}

// lexState is one automaton node. forceStop marks accepting states that
// can never be extended (single-character operators, closing quotes).
type lexState struct {
	code        TokenCode
	forceStop   bool
	transitions []transition
}

func (s *lexState) on(match charClass, next int) *lexState {
	s.transitions = append(s.transitions, transition{match, next})
	return s
}

func (s *lexState) next(r rune) (int, bool) {
	for _, t := range s.transitions {
		if t.match(r) {
			return t.next, true
		}
	}
	return 0, false
}

// State ids. Groups of related states are numbered contiguously.
const (
	stStart = 0

	stLess       = 2
	stLessEq     = 3
	stAssign     = 4
	stLessLess   = 5
	stGreater    = 6
	stGreaterEq  = 7
	stEqual      = 8
	stTilde      = 9
	stNotEqual   = 10
	stPlus       = 11 // 11..24 are single-character tokens
	stDot        = 25
	stComma      = 26 // 26..29 likewise
	stIdent      = 30
	stInteger    = 31
	stRealDot    = 32
	stRealFrac   = 33
	stRealExp    = 34
	stRealSign   = 35
	stRealExpDig = 36
	stString     = 37
	stStringBad  = 38
	stStringEnd  = 39
	stEscape     = 40
	stLineCom    = 41
	stLineComEnd = 42
	stBlockCom   = 43
	stBlockDash  = 44
	stBlockAngle = 45
	stBlockEnd   = 46

	numStates = 47
)

// stateTable is built once; StateMachines share it read-only.
var stateTable = buildStateTable()

func buildStateTable() []*lexState {
	t := make([]*lexState, numStates)
	for i := range t {
		t[i] = &lexState{code: TokenNone}
	}
	def := func(id int, code TokenCode, forceStop bool) *lexState {
		t[id].code = code
		t[id].forceStop = forceStop
		return t[id]
	}

	singles := []struct {
		ch   rune
		code TokenCode
	}{
		{'+', TokenPlus}, {'-', TokenMinus}, {'*', TokenMult}, {'/', TokenDiv}, {'^', TokenExp},
		{'!', TokenNot}, {'&', TokenAnd}, {'|', TokenOr},
		{'(', TokenLParen}, {')', TokenRParen}, {'[', TokenLBracket}, {']', TokenRBracket},
		{'{', TokenLBrace}, {'}', TokenRBrace},
	}
	punct := []struct {
		ch   rune
		code TokenCode
	}{
		{',', TokenComma}, {';', TokenSemicolon}, {':', TokenColon}, {'@', TokenAt},
	}

	start := def(stStart, TokenNone, false).
		on(isSpace, stStart).
		on(is('<'), stLess).
		on(is('>'), stGreater).
		on(is('='), stEqual).
		on(is('~'), stTilde)
	for i, s := range singles {
		start.on(is(s.ch), stPlus+i)
		def(stPlus+i, s.code, true)
	}
	start.on(is('.'), stDot)
	for i, p := range punct {
		start.on(is(p.ch), stComma+i)
		def(stComma+i, p.code, true)
	}
	start.
		on(isIdentStart, stIdent).
		on(isDigit, stInteger).
		on(is('"'), stString).
		on(is('#'), stLineCom)

	// <  <=  <-  <<-
	def(stLess, TokenLess, false).
		on(is('='), stLessEq).
		on(is('-'), stAssign).
		on(is('<'), stLessLess)
	def(stLessEq, TokenLessEq, true)
	def(stAssign, TokenAssign, true)
	def(stLessLess, TokenUnknown, false).on(is('-'), stBlockCom)

	// >  >=
	def(stGreater, TokenGreater, false).on(is('='), stGreaterEq)
	def(stGreaterEq, TokenGreaterEq, true)

	// =  ~=
	def(stEqual, TokenEqual, true)
	def(stTilde, TokenUnknown, false).on(is('='), stNotEqual)
	def(stNotEqual, TokenNotEqual, true)

	// .  .5
	def(stDot, TokenDot, false).on(isDigit, stRealFrac)

	def(stIdent, TokenIdent, false).on(isIdentPart, stIdent)

	// 12  12.  12.5  1e5  1.5E-3
	def(stInteger, TokenInteger, false).
		on(isDigit, stInteger).
		on(is('.'), stRealDot).
		on(isExpMark, stRealExp)
	def(stRealDot, TokenReal, false).
		on(isDigit, stRealFrac).
		on(isExpMark, stRealExp)
	def(stRealFrac, TokenReal, false).
		on(isExpMark, stRealExp).
		on(isDigit, stRealFrac)
	def(stRealExp, TokenUnknown, false).
		on(isDigit, stRealExpDig).
		on(oneOf("+-"), stRealSign)
	def(stRealSign, TokenUnknown, false).on(isDigit, stRealExpDig)
	def(stRealExpDig, TokenReal, false).on(isDigit, stRealExpDig)

	// "..."
	def(stString, TokenStringPartial, false).
		on(is('\\'), stEscape).
		on(oneOf(newlines), stStringBad).
		on(is('"'), stStringEnd).
		on(not(`"\`+newlines), stString)
	def(stStringBad, TokenStringInvalid, true)
	def(stStringEnd, TokenString, true)
	def(stEscape, TokenStringPartial, false).
		on(oneOf(newlines), stStringBad).
		on(not(newlines), stString)

	// # to end of line
	def(stLineCom, TokenComment, false).
		on(not(newlines), stLineCom).
		on(is('\n'), stLineComEnd)
	def(stLineComEnd, TokenComment, true)

	// <<- ... ->>
	def(stBlockCom, TokenComment, false).
		on(not("-"), stBlockCom).
		on(is('-'), stBlockDash)
	def(stBlockDash, TokenComment, false).
		on(is('>'), stBlockAngle).
		on(is('-'), stBlockDash).
		on(not(">-"), stBlockCom)
	def(stBlockAngle, TokenComment, false).
		on(is('>'), stBlockEnd).
		on(is('-'), stBlockDash).
		on(not(">-"), stBlockCom)
	def(stBlockEnd, TokenComment, true)

	return t
}

// ---------------------------------------------------------------------------
// StateMachine
// ---------------------------------------------------------------------------

// StateMachine walks the lexer automaton one character at a time. After a
// halt, Rewind reports whether the character that caused it is not part of
// the token (no transition existed) as opposed to a forced stop on an
// unextendable accepting state.
type StateMachine struct {
	table   []*lexState
	current int
	history []int
	stopped bool
	rewind  bool
}

// NewStateMachine returns a machine positioned at the start state.
func NewStateMachine() *StateMachine {
	m := &StateMachine{table: stateTable}
	m.Reset()
	return m
}

// Reset returns to the start state and clears the history.
func (m *StateMachine) Reset() {
	m.current = stStart
	m.history = append(m.history[:0], stStart)
	m.stopped = false
	m.rewind = false
}

// Advance follows the transition for r. Advancing a stopped machine is a
// no-op.
func (m *StateMachine) Advance(r rune) {
	if m.stopped {
		return
	}
	next, ok := m.table[m.current].next(r)
	if !ok {
		m.stopped = true
		m.rewind = true
		return
	}
	m.current = next
	m.history = append(m.history, next)
	if m.table[next].forceStop {
		m.stopped = true
	}
}

// Stopped reports whether the machine can accept no further input.
func (m *StateMachine) Stopped() bool { return m.stopped }

// Rewind reports whether the last character given to Advance was rejected.
func (m *StateMachine) Rewind() bool { return m.rewind }

// CurrentCode returns the code of the most recently entered state.
func (m *StateMachine) CurrentCode() TokenCode {
	return m.table[m.current].code
}

// History returns the codes of every state entered since the last Reset,
// starting with the start state.
func (m *StateMachine) History() []TokenCode {
	out := make([]TokenCode, len(m.history))
	for i, id := range m.history {
		out[i] = m.table[id].code
	}
	return out
}

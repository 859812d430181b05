package compiler

import (
	"bufio"
	"io"
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("tinyscript.compiler")

// ---------------------------------------------------------------------------
// Rune source with position-restoring pushback
// ---------------------------------------------------------------------------

// scanned is one consumed character and the position it was read at.
type scanned struct {
	r    rune
	line int
	col  int
}

type runeSource struct {
	in      *bufio.Reader
	pending []scanned // pushed back, last element is read first
	line    int
	col     int
	err     error
}

func newRuneSource(r io.Reader) *runeSource {
	return &runeSource{in: bufio.NewReader(r), line: 1, col: 1}
}

func (s *runeSource) read() (scanned, bool) {
	if n := len(s.pending); n > 0 {
		c := s.pending[n-1]
		s.pending = s.pending[:n-1]
		s.advance(c.r)
		return c, true
	}
	if s.err != nil {
		return scanned{}, false
	}
	r, _, err := s.in.ReadRune()
	if err != nil {
		if err != io.EOF {
			log.Warningf("lexer: read: %s", err)
		}
		s.err = err
		return scanned{}, false
	}
	c := scanned{r: r, line: s.line, col: s.col}
	s.advance(r)
	return c, true
}

func (s *runeSource) advance(r rune) {
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

// unread pushes c back and restores the position it was read at.
func (s *runeSource) unread(c scanned) {
	s.pending = append(s.pending, c)
	s.line = c.line
	s.col = c.col
}

// unreadAll pushes back cs so that cs[0] is read next.
func (s *runeSource) unreadAll(cs []scanned) {
	for i := len(cs) - 1; i >= 0; i-- {
		s.unread(cs[i])
	}
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

// Lexer turns a character stream into tokens by driving the StateMachine.
// It always produces the longest valid token at each position, backing
// off through the state history when the automaton halts in an invalid
// state.
type Lexer struct {
	src *runeSource
	sm  *StateMachine
	seq int
}

// NewLexer creates a lexer reading from r.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{src: newRuneSource(r), sm: NewStateMachine()}
}

// NewLexerString creates a lexer over an in-memory source.
func NewLexerString(src string) *Lexer {
	return NewLexer(strings.NewReader(src))
}

// Err returns the first non-EOF read error, if any. The lexer treats such
// an error as end of input.
func (l *Lexer) Err() error {
	if l.src.err == io.EOF {
		return nil
	}
	return l.src.err
}

// NextToken returns the next token, or NoneToken once input is exhausted.
// Comments are dropped.
func (l *Lexer) NextToken() Token {
	for {
		tok, ok := l.scan()
		if ok {
			return tok
		}
	}
}

// scan reads one candidate token. It reports false when the candidate was
// a comment and scanning must continue.
func (l *Lexer) scan() (Token, bool) {
	l.sm.Reset()
	var text []scanned

	for {
		c, ok := l.src.read()
		if !ok {
			return l.finishAtEOF(text)
		}

		l.sm.Advance(c.r)
		if l.sm.Rewind() {
			if len(text) == 0 {
				// No transition out of the start state.
				return l.emit(TokenUnknown, []scanned{c}), true
			}
			l.src.unread(c)
			code := l.sm.CurrentCode()
			if code == TokenUnknown {
				return l.backoff(text), true
			}
			if code == TokenComment {
				return Token{}, false
			}
			return l.emit(code, text), true
		}

		code := l.sm.CurrentCode()
		if code == TokenNone {
			// Leading whitespace.
			l.sm.Reset()
			continue
		}
		text = append(text, c)

		if l.sm.Stopped() {
			switch code {
			case TokenComment:
				return Token{}, false
			case TokenStringInvalid:
				// The terminating newline is not part of the token.
				return l.emit(code, text[:len(text)-1]), true
			}
			return l.emit(code, text), true
		}
	}
}

// finishAtEOF resolves a candidate cut short by end of input.
func (l *Lexer) finishAtEOF(text []scanned) (Token, bool) {
	if len(text) == 0 {
		return NoneToken, true
	}
	switch code := l.sm.CurrentCode(); code {
	case TokenComment:
		return NoneToken, true
	case TokenStringPartial:
		return l.emit(TokenStringInvalid, text), true
	case TokenUnknown:
		return l.backoff(text), true
	default:
		return l.emit(code, text), true
	}
}

// backoff finds the longest prefix of text that ended in a valid state,
// pushes the rest back onto the input and emits the prefix. If no prefix
// is valid the whole candidate becomes an UNKNOWN token.
func (l *Lexer) backoff(text []scanned) Token {
	history := l.sm.History()
	// history[i] is the state entered after consuming text[:i].
	for i := len(text) - 1; i >= 1; i-- {
		if code := history[i]; code != TokenUnknown && code != TokenNone {
			l.src.unreadAll(text[i:])
			return l.emit(code, text[:i])
		}
	}
	return l.emit(TokenUnknown, text)
}

func (l *Lexer) emit(code TokenCode, text []scanned) Token {
	l.seq++
	tok := Token{Code: code, Seq: l.seq}
	if len(text) > 0 {
		tok.Line = text[0].line
		tok.Col = text[0].col
	}
	raw := make([]rune, len(text))
	for i, c := range text {
		raw[i] = c.r
	}
	s := string(raw)
	switch code {
	case TokenString:
		s = unescapeString(s[1 : len(s)-1])
	case TokenStringInvalid:
		s = unescapeString(s[1:])
	}
	tok.Text = s
	if code == TokenUnknown || code == TokenStringInvalid {
		log.Debugf("lexer: %s", tok)
	}
	return tok
}

// Tokenize lexes src completely. The trailing NoneToken is not included.
func Tokenize(src string) []Token {
	l := NewLexerString(src)
	var out []Token
	for {
		tok := l.NextToken()
		if tok.IsNone() {
			return out
		}
		out = append(out, tok)
	}
}

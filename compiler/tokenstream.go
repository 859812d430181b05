package compiler

import "github.com/pkg/errors"

// TokenSource produces tokens until it returns NoneToken.
type TokenSource interface {
	NextToken() Token
}

// DefaultStreamSize is the token capacity used when NewTokenStream is
// given a size below 1.
const DefaultStreamSize = 5

// TokenStream is a small buffer of recently read tokens over a
// TokenSource. It gives the parser single-token pushback and, through a
// mark, arbitrary rollback to the start of a speculative parse.
//
// The buffer holds at most size tokens. When it is full the oldest token is
// evicted, unless that token is marked or not yet read, in which case the
// buffer grows instead.
type TokenStream struct {
	src  TokenSource
	size int
	buf  []Token
	pos  int // index in buf of the next token Read returns
	mark int // index in buf of the marked token, or -1
	eos  bool
}

// NewTokenStream wraps src.
func NewTokenStream(src TokenSource, size int) *TokenStream {
	if size < 1 {
		size = DefaultStreamSize
	}
	return &TokenStream{src: src, size: size, mark: -1}
}

// fill fetches one token from the source into the buffer. It reports false
// once the source is exhausted.
func (ts *TokenStream) fill() bool {
	if ts.eos {
		return false
	}
	tok := ts.src.NextToken()
	if tok.IsNone() {
		ts.eos = true
		return false
	}
	for len(ts.buf) >= ts.size && ts.pos > 0 && ts.mark != 0 {
		ts.buf = ts.buf[1:]
		ts.pos--
		if ts.mark > 0 {
			ts.mark--
		}
	}
	ts.buf = append(ts.buf, tok)
	return true
}

// Read returns the next token, or NoneToken at end of stream.
func (ts *TokenStream) Read() Token {
	if ts.pos == len(ts.buf) && !ts.fill() {
		return NoneToken
	}
	tok := ts.buf[ts.pos]
	ts.pos++
	return tok
}

// Unread pushes back tok, which must be the token most recently returned
// by Read. Unreading NoneToken at end of stream is a no-op.
func (ts *TokenStream) Unread(tok Token) error {
	if tok.IsNone() {
		if ts.AtEOS() {
			return nil
		}
		return errors.Errorf("token stream: unread of NONE before end of stream")
	}
	if ts.pos == 0 || !ts.buf[ts.pos-1].Is(tok) {
		return errors.Errorf("token stream: unread %s is not the last token read", tok)
	}
	ts.pos--
	return nil
}

func (ts *TokenStream) index(tok Token) int {
	for i := range ts.buf {
		if ts.buf[i].Is(tok) {
			return i
		}
	}
	return -1
}

// Mark pins tok, which must still be buffered, so that it and every token
// after it stay available to Rewind. Only one mark is held; a new Mark
// replaces the old one.
func (ts *TokenStream) Mark(tok Token) error {
	i := ts.index(tok)
	if i < 0 {
		return errors.Errorf("token stream: mark %s: not buffered", tok)
	}
	ts.mark = i
	return nil
}

// Unmark releases the mark.
func (ts *TokenStream) Unmark() {
	ts.mark = -1
}

// Rewind moves the read position back so that tok is returned by the next
// Read. tok must be marked or still buffered.
func (ts *TokenStream) Rewind(tok Token) error {
	i := ts.index(tok)
	if i < 0 {
		return errors.Errorf("token stream: rewind to %s: not buffered", tok)
	}
	ts.pos = i
	return nil
}

// Clear drops every buffered token and the mark.
func (ts *TokenStream) Clear() {
	ts.buf = nil
	ts.pos = 0
	ts.mark = -1
}

// AtEOS reports whether the source is exhausted and no buffered token
// remains ahead of the read position. It may pull one token from the
// source to find out.
func (ts *TokenStream) AtEOS() bool {
	if ts.pos < len(ts.buf) {
		return false
	}
	return !ts.fill()
}

// Len returns the number of buffered tokens.
func (ts *TokenStream) Len() int { return len(ts.buf) }

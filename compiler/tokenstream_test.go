package compiler

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func newStream(src string, size int) *TokenStream {
	return NewTokenStream(NewLexerString(src), size)
}

func TestTokenStreamReadUnread(t *testing.T) {
	ts := newStream("a b c", 0)
	a := ts.Read()
	b := ts.Read()
	if a.Text != "a" || b.Text != "b" {
		t.Fatalf("Read() = %v, %v", a, b)
	}
	if err := ts.Unread(a); err == nil {
		t.Error("Unread of a token that was not read last should fail")
	}
	if err := ts.Unread(b); err != nil {
		t.Fatalf("Unread(b) = %v", err)
	}
	if got := ts.Read(); !got.Is(b) {
		t.Errorf("Read() after Unread = %v, want %v", got, b)
	}
	if got := ts.Read(); got.Text != "c" {
		t.Errorf("Read() = %v, want c", got)
	}
	if got := ts.Read(); !got.IsNone() {
		t.Errorf("Read() at end = %v, want NONE", got)
	}
	if err := ts.Unread(NoneToken); err != nil {
		t.Errorf("Unread(NONE) at end = %v", err)
	}
	if !ts.AtEOS() {
		t.Error("AtEOS() = false at end")
	}
}

func TestTokenStreamUnreadNoneBeforeEnd(t *testing.T) {
	ts := newStream("a", 0)
	if err := ts.Unread(NoneToken); err == nil {
		t.Error("Unread(NONE) before end should fail")
	}
	if got := ts.Read(); got.Text != "a" {
		t.Errorf("Read() = %v, want a", got)
	}
}

func TestTokenStreamEviction(t *testing.T) {
	ts := newStream("a b c d", 2)
	a := ts.Read()
	b := ts.Read()
	ts.Read()
	if ts.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ts.Len())
	}
	if err := ts.Rewind(a); err == nil {
		t.Error("Rewind to an evicted token should fail")
	}
	if err := ts.Rewind(b); err != nil {
		t.Fatalf("Rewind(b) = %v", err)
	}
	if got := ts.Read(); !got.Is(b) {
		t.Errorf("Read() after Rewind = %v, want %v", got, b)
	}
}

func TestTokenStreamMarkGrows(t *testing.T) {
	ts := newStream("a b c d", 2)
	a := ts.Read()
	if err := ts.Mark(a); err != nil {
		t.Fatalf("Mark(a) = %v", err)
	}
	ts.Read()
	ts.Read()
	ts.Read()
	if ts.Len() != 4 {
		t.Errorf("Len() with mark = %d, want 4", ts.Len())
	}
	if err := ts.Rewind(a); err != nil {
		t.Fatalf("Rewind(a) = %v", err)
	}
	for _, want := range []string{"a", "b", "c", "d"} {
		if got := ts.Read(); got.Text != want {
			t.Errorf("Read() = %q, want %q", got.Text, want)
		}
	}

	ts.Unmark()
	ts.Rewind(a)
	ts.Read()
	ts.Read()
	if ts.AtEOS() {
		t.Error("AtEOS() = true with buffered tokens ahead")
	}
}

func TestTokenStreamMarkUnbuffered(t *testing.T) {
	ts := newStream("a", 0)
	other := Tokenize("z")[0]
	other.Seq = 99
	if err := ts.Mark(other); err == nil {
		t.Error("Mark of an unbuffered token should fail")
	}
}

func TestTokenStreamClear(t *testing.T) {
	ts := newStream("a b", 0)
	a := ts.Read()
	ts.Mark(a)
	ts.Clear()
	if ts.Len() != 0 {
		t.Errorf("Len() after Clear = %d", ts.Len())
	}
	if got := ts.Read(); got.Text != "b" {
		t.Errorf("Read() after Clear = %v, want b", got)
	}
}

func TestTokenStreamEmpty(t *testing.T) {
	ts := newStream("   # nothing here", 0)
	if !ts.AtEOS() {
		t.Error("AtEOS() = false for empty source")
	}
	if got := ts.Read(); !got.IsNone() {
		t.Errorf("Read() = %v, want NONE", got)
	}
}

func TestTokenStreamErrors(t *testing.T) {
	ts := newStream("a b c d", 2)
	a := ts.Read()
	ts.Read()
	ts.Read()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unread NONE", ts.Unread(NoneToken), "unread of NONE before end of stream"},
		{"unread stale", ts.Unread(a), "is not the last token read"},
		{"mark evicted", ts.Mark(a), "not buffered"},
		{"rewind evicted", ts.Rewind(a), "not buffered"},
	}
	for _, tc := range tests {
		if tc.err == nil {
			t.Errorf("%s: err = nil, want %q", tc.name, tc.want)
			continue
		}
		if !strings.HasPrefix(tc.err.Error(), "token stream: ") || !strings.Contains(tc.err.Error(), tc.want) {
			t.Errorf("%s: err = %q, want %q", tc.name, tc.err, tc.want)
		}
		if _, ok := tc.err.(interface{ StackTrace() errors.StackTrace }); !ok {
			t.Errorf("%s: err has no stack trace", tc.name)
		}
	}
}

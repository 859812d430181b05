package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Token codes
// ---------------------------------------------------------------------------

// TokenCode identifies a token's lexical category. It is also the code a
// lexer state reports when the automaton halts there.
type TokenCode int

const (
	// Sentinels
	TokenNone    TokenCode = iota // end of input, or "still skipping whitespace"
	TokenUnknown                  // unrecognized character sequence

	// Relational and assignment
	TokenLess      // <
	TokenLessEq    // <=
	TokenAssign    // <-
	TokenGreater   // >
	TokenGreaterEq // >=
	TokenEqual     // =
	TokenNotEqual  // ~=

	// Arithmetic
	TokenPlus  // +
	TokenMinus // -
	TokenMult  // *
	TokenDiv   // /
	TokenExp   // ^

	// Logical
	TokenNot // !
	TokenAnd // &
	TokenOr  // |

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenDot       // .
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenAt        // @

	// Literals and names
	TokenIdent
	TokenInteger
	TokenReal
	TokenString
	TokenStringPartial // inside a string body; never emitted
	TokenStringInvalid // newline or end of input before the closing quote

	TokenComment // dropped by the lexer
)

var tokenNames = map[TokenCode]string{
	TokenNone:          "NONE",
	TokenUnknown:       "UNKNOWN",
	TokenLess:          "LESS",
	TokenLessEq:        "LESS_EQ",
	TokenAssign:        "ASSIGN",
	TokenGreater:       "GREATER",
	TokenGreaterEq:     "GREATER_EQ",
	TokenEqual:         "EQUAL",
	TokenNotEqual:      "NOT_EQUAL",
	TokenPlus:          "PLUS",
	TokenMinus:         "MINUS",
	TokenMult:          "MULT",
	TokenDiv:           "DIV",
	TokenExp:           "EXP",
	TokenNot:           "NOT",
	TokenAnd:           "AND",
	TokenOr:            "OR",
	TokenLParen:        "LPAREN",
	TokenRParen:        "RPAREN",
	TokenLBracket:      "LBRACKET",
	TokenRBracket:      "RBRACKET",
	TokenLBrace:        "LBRACE",
	TokenRBrace:        "RBRACE",
	TokenDot:           "DOT",
	TokenComma:         "COMMA",
	TokenSemicolon:     "SEMICOLON",
	TokenColon:         "COLON",
	TokenAt:            "AT",
	TokenIdent:         "IDENT",
	TokenInteger:       "INTEGER",
	TokenReal:          "REAL",
	TokenString:        "STRING",
	TokenStringPartial: "STRING_PARTIAL",
	TokenStringInvalid: "STRING_INVALID",
	TokenComment:       "COMMENT",
}

func (c TokenCode) String() string {
	if name, ok := tokenNames[c]; ok {
		return name
	}
	return fmt.Sprintf("TokenCode(%d)", int(c))
}

// ---------------------------------------------------------------------------
// Keywords
// ---------------------------------------------------------------------------

// reservedWords are statement and control-flow words. The command line
// rejects any input containing one of them.
var reservedWords = map[string]bool{
	"if":    true,
	"else":  true,
	"while": true,
	"print": true,
	"read":  true,
}

// keywords are every identifier that cannot name a variable.
var keywords = map[string]bool{
	"if":    true,
	"else":  true,
	"while": true,
	"print": true,
	"read":  true,
	"clear": true,
	"mod":   true,
	"true":  true,
	"false": true,
}

// IsReserved reports whether name is a reserved statement word.
func IsReserved(name string) bool { return reservedWords[name] }

// IsKeyword reports whether name is unavailable as a variable name.
func IsKeyword(name string) bool { return keywords[name] }

// Keywords returns every keyword, for completion.
func Keywords() []string {
	return []string{"print", "clear", "mod", "true", "false", "if", "else", "while", "read"}
}

// ---------------------------------------------------------------------------
// Token
// ---------------------------------------------------------------------------

// Token is one lexeme. Line and Col locate its first character (1-based).
// Seq numbers the tokens of one lexer run starting at 1; the sentinels
// have Seq 0. For STRING and STRING_INVALID tokens Text holds the value with
// quotes stripped and escapes processed.
type Token struct {
	Code TokenCode
	Line int
	Col  int
	Seq  int
	Text string
}

// NoneToken marks end of input. UnknownToken is the generic "unparseable"
// marker.
var (
	NoneToken    = Token{Code: TokenNone}
	UnknownToken = Token{Code: TokenUnknown}
)

// Is reports whether two tokens are the same lexeme of the same run.
func (t Token) Is(other Token) bool {
	return t.Seq == other.Seq && t.Code == other.Code
}

// IsNone reports whether t is the end-of-input sentinel.
func (t Token) IsNone() bool { return t.Code == TokenNone }

// IsKeyword reports whether t is an identifier naming a keyword.
func (t Token) IsKeyword(word string) bool {
	return t.Code == TokenIdent && t.Text == word
}

// Value is the token text as it would be quoted in a diagnostic. String
// tokens are re-escaped and wrapped in double quotes.
func (t Token) Value() string {
	switch t.Code {
	case TokenString:
		return EscapeString(t.Text)
	case TokenStringInvalid:
		return `"` + escapeBody(t.Text)
	}
	return t.Text
}

func (t Token) String() string {
	if t.Code == TokenNone {
		return "NONE"
	}
	return fmt.Sprintf("%s(%s) [%d:%d] #%d", t.Code, t.Value(), t.Line, t.Col, t.Seq)
}

// ---------------------------------------------------------------------------
// String escapes
// ---------------------------------------------------------------------------

// unescapeString processes the escape sequences of a string body. Unknown
// escapes, and a trailing lone backslash, are kept verbatim.
func unescapeString(body string) string {
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	runes := []rune(body)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' || i+1 == len(runes) {
			b.WriteRune(r)
			continue
		}
		i++
		switch runes[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'b':
			b.WriteByte('\b')
		default:
			b.WriteByte('\\')
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// EscapeString renders s as a quoted string literal that lexes back to s.
func EscapeString(s string) string {
	return `"` + escapeBody(s) + `"`
}

func escapeBody(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

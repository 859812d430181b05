package compiler

import (
	"fmt"
	"strings"
)

// Level is a diagnostic severity.
type Level uint8

const (
	LevelError Level = iota
	LevelWarning
)

func (l Level) String() string {
	if l == LevelWarning {
		return "Warning"
	}
	return "Error"
}

// ErrType categorizes a diagnostic.
type ErrType uint8

const (
	ErrArithmetic ErrType = iota
	ErrBoolean
	ErrMethodRef
	ErrSymbolRef
	ErrAssignment
	ErrInput
	ErrIllegalExpr
)

var errTypeNames = [...]string{
	ErrArithmetic:  "Arithmetic",
	ErrBoolean:     "Boolean",
	ErrMethodRef:   "Method reference",
	ErrSymbolRef:   "Symbol reference",
	ErrAssignment:  "Assignment",
	ErrInput:       "Input",
	ErrIllegalExpr: "Illegal expression",
}

func (t ErrType) String() string {
	if int(t) < len(errTypeNames) {
		return errTypeNames[t]
	}
	return fmt.Sprintf("ErrType(%d)", t)
}

// Diagnostic messages.
const (
	MsgInvalidNumeric     = "Numeric operand out of sequence"
	MsgMissingBinaryRHS   = "Missing right-hand operand for binary operator"
	MsgMissingUnaryRHS    = "Missing right-hand operand for unary operator"
	MsgUnexpectedArith    = "Unexpected/out-of-sequence arithmetic keyword/operator"
	MsgUnexpectedKeyword  = "Unexpected symbol/keyword"
	MsgUnmatchedLParen    = "Unmatched left parenthesis"
	MsgUnmatchedRParen    = "Unmatched right parenthesis"
	MsgUnknownType        = "Unable to deduce type from right-hand expression"
	MsgReservedKeyword    = "Illegal use of reserved keyword"
	MsgMissingLParen      = "Expected left parenthesis to follow method name"
	MsgMissingRParen      = "Expected right parenthesis to follow method list of method arguments"
	MsgTypeMismatch       = "Unable to convert between types"
	MsgMethodArgument     = "Unable to evaluate method argument"
	MsgUndefinedSymbol    = "Unrecognized variable name"
	MsgBinaryTypeMismatch = "Operand type mismatch in binary operation"
	MsgAssignMismatch     = "Type mismatch in assignment"
	MsgListSeparator      = "Expected argument list separator"
	MsgIntegerRange       = "Integer literal out of range"
	MsgCommandLine        = "Script functions and logic unavailable on the command line"
	MsgUnexpectedEOS      = "Unexpected end of file/line while processing instruction(s)"
	MsgMissingTerminator  = "Unexpected end-of-script while looking for statement terminator (;)"
)

// ParseError is one compiler diagnostic. Token is the offending token, or
// NoneToken when there is none. EOS marks the non-recoverable
// end-of-stream condition that aborts a parse.
type ParseError struct {
	Level   Level
	Type    ErrType
	Message string
	Token   Token
	EOS     bool
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:Type=%s", e.Level, e.Type)
	if !e.Token.IsNone() {
		fmt.Fprintf(&b, " [%d:%d]", e.Token.Line, e.Token.Col)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if !e.Token.IsNone() {
		fmt.Fprintf(&b, " (%s)", e.Token.Value())
	}
	b.WriteByte('.')
	return b.String()
}

func newError(typ ErrType, msg string, tok Token) *ParseError {
	return &ParseError{Level: LevelError, Type: typ, Message: msg, Token: tok}
}

func eosError(msg string) *ParseError {
	return &ParseError{Level: LevelError, Type: ErrInput, Message: msg, Token: NoneToken, EOS: true}
}

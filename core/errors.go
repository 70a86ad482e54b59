package lisp

import (
	"errors"
	"fmt"
)

// Pos is a 1-based source position. The zero Pos means "unknown".
type Pos struct {
	Row int
	Col int
}

func (p Pos) Known() bool { return p.Row > 0 }

func (p Pos) String() string {
	if !p.Known() {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Row, p.Col)
}

type SyntaxErrorKind int

const (
	ExpectedParen   SyntaxErrorKind = iota // unclosed ( or [
	ExpectedQuote                          // unterminated string
	ExpectedAtom                           // ' with nothing after it
	UnexpectedParen                        // closer without an opener
)

func (k SyntaxErrorKind) String() string {
	switch k {
	case ExpectedParen:
		return "expected closing delimiter"
	case ExpectedQuote:
		return "expected closing quote"
	case ExpectedAtom:
		return "expected atom"
	case UnexpectedParen:
		return "unexpected closing delimiter"
	default:
		return "syntax error"
	}
}

// SyntaxError aborts parsing of the whole program.
type SyntaxError struct {
	Kind SyntaxErrorKind
	Pos  Pos
	Want string // expected delimiter, if any
	eof  bool
}

func (e *SyntaxError) Error() string {
	msg := e.Kind.String()
	if e.Want != "" {
		msg += fmt.Sprintf(" %q", e.Want)
	}
	return fmt.Sprintf("syntax error at %s: %s", e.Pos, msg)
}

// IsIncomplete reports whether err is a syntax error caused only by input
// ending too early, i.e. more input could make the program parse.
func IsIncomplete(err error) bool {
	var se *SyntaxError
	if !errors.As(err, &se) {
		return false
	}
	return se.eof
}

type RuntimeErrorKind int

const (
	UnknownIdentifier RuntimeErrorKind = iota
	UnexpectedType
	Arity
	BadEval
	DepthExceeded
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case UnknownIdentifier:
		return "unknown identifier"
	case UnexpectedType:
		return "unexpected type"
	case Arity:
		return "wrong number of arguments"
	case BadEval:
		return "bad eval"
	case DepthExceeded:
		return "recursion too deep"
	default:
		return "runtime error"
	}
}

// RuntimeError fails a single top-level statement.
type RuntimeError struct {
	Kind RuntimeErrorKind
	Pos  Pos
	Msg  string
}

func (e *RuntimeError) Error() string {
	if e.Pos.Known() {
		return fmt.Sprintf("%s at %s: %s", e.Kind, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func runtimeErr(kind RuntimeErrorKind, n *Node, format string, args ...any) *RuntimeError {
	e := &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Pos = n.Pos
	}
	return e
}

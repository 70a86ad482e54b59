package lisp

import (
	"fmt"
	"strconv"
	"strings"
)

type ValueKind int

const (
	ValNil ValueKind = iota
	ValInt
	ValFloat
	ValString
	ValQuoted
	ValList
	ValProc
	ValSymbol // identifier carried as data (quoted or bracket-literal syntax)
)

// BuiltinFunc receives its argument nodes unevaluated and decides itself
// which of them to evaluate.
type BuiltinFunc func(ev *Evaluator, env *Env, args []*Node) (Value, error)

// Procedure is either a builtin (Fn set) or a closure (Body set).
type Procedure struct {
	Name   string
	Fn     BuiltinFunc
	Params []string
	Body   *Node
	Env    *Env
}

func (p *Procedure) IsBuiltin() bool { return p.Fn != nil }

type Value struct {
	Kind   ValueKind
	Int    int64
	Float  float64
	Str    string
	Quoted *Value
	List   []Value
	Proc   *Procedure

	// Bracket marks a list that came from [...] syntax. It does not affect
	// Show or equality; it keeps the list inert when run as code again.
	Bracket bool
}

func NilVal() Value             { return Value{Kind: ValNil} }
func IntVal(n int64) Value      { return Value{Kind: ValInt, Int: n} }
func FloatVal(f float64) Value  { return Value{Kind: ValFloat, Float: f} }
func StringVal(s string) Value  { return Value{Kind: ValString, Str: s} }
func SymbolVal(s string) Value  { return Value{Kind: ValSymbol, Str: s} }
func ProcVal(p *Procedure) Value { return Value{Kind: ValProc, Proc: p} }
func QuotedVal(v Value) Value   { return Value{Kind: ValQuoted, Quoted: &v} }
func ListVal(elems []Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{Kind: ValList, List: elems}
}

func BuiltinVal(name string, fn BuiltinFunc) Value {
	return ProcVal(&Procedure{Name: name, Fn: fn})
}

// Truthy: nil is the only false value.
func (v Value) Truthy() bool {
	return v.Kind != ValNil
}

// Show is the canonical rendering, used for output and for equality.
func (v Value) Show() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValInt:
		return strconv.FormatInt(v.Int, 10)
	case ValFloat:
		return formatFloat(v.Float)
	case ValString:
		return v.Str
	case ValSymbol:
		return v.Str
	case ValQuoted:
		return "'" + v.Quoted.showNested()
	case ValList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = e.showNested()
		}
		return "(" + strings.Join(parts, " ") + ")"
	case ValProc:
		if v.Proc.IsBuiltin() {
			return fmt.Sprintf("<builtin %s>", v.Proc.Name)
		}
		return fmt.Sprintf("<fn %s [%s]>", v.Proc.Name, strings.Join(v.Proc.Params, " "))
	default:
		return fmt.Sprintf("<unknown:%d>", v.Kind)
	}
}

// showNested quotes strings so that ("a b") and ("a" "b") render differently.
func (v Value) showNested() string {
	if v.Kind == ValString {
		return strconv.Quote(v.Str)
	}
	return v.Show()
}

func (v Value) String() string { return v.Show() }

// formatFloat always keeps a float distinguishable from an int.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func (v Value) KindName() string {
	switch v.Kind {
	case ValNil:
		return "Nil"
	case ValInt:
		return "Int"
	case ValFloat:
		return "Float"
	case ValString:
		return "Str"
	case ValQuoted:
		return "Quoted"
	case ValList:
		return "List"
	case ValProc:
		return "Procedure"
	case ValSymbol:
		return "Symbol"
	default:
		return "Unknown"
	}
}

// Equal compares canonical renderings, so Int 1 and Float 1.0 differ.
func Equal(a, b Value) bool {
	return a.Show() == b.Show()
}

// listOf accepts a list or a quoted list.
func listOf(v Value) ([]Value, bool) {
	switch v.Kind {
	case ValList:
		return v.List, true
	case ValQuoted:
		if v.Quoted.Kind == ValList {
			return v.Quoted.List, true
		}
	}
	return nil, false
}

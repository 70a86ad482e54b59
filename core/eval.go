package lisp

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxDepth bounds nested evaluation so runaway recursion fails the
// current statement instead of exhausting the goroutine stack.
const DefaultMaxDepth = 10000

// Evaluator turns nodes into values against an Env. Like Env, an Evaluator
// belongs to one goroutine at a time: it tracks the current nesting depth.
type Evaluator struct {
	Stdout io.Writer // println output
	Stderr io.Writer // per-statement diagnostics from Run

	// Permissive makes unbound identifiers evaluate to nil and eval of a
	// non-quoted value return nil, instead of failing the statement.
	Permissive bool

	MaxDepth int
	depth    int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{Stdout: os.Stdout, Stderr: os.Stderr, MaxDepth: DefaultMaxDepth}
}

func (e *Evaluator) Eval(node *Node, env *Env) (Value, error) {
	e.depth++
	defer func() { e.depth-- }()
	if e.MaxDepth > 0 && e.depth > e.MaxDepth {
		return Value{}, runtimeErr(DepthExceeded, node, "more than %d nested evaluations", e.MaxDepth)
	}

	switch node.Kind {
	case NodeInt:
		return IntVal(node.Int), nil
	case NodeFloat:
		return FloatVal(node.Float), nil
	case NodeString:
		return StringVal(node.Str), nil
	case NodeNil:
		return NilVal(), nil
	case NodeQuoted:
		return QuotedVal(rawValueOf(node.Children[0])), nil
	case NodeIdent:
		return e.lookup(env, node.Str, node)
	case NodeList:
		return e.evalList(node, env)
	case NodeValue:
		return *node.Value, nil
	default:
		return Value{}, runtimeErr(UnexpectedType, node, "unknown node kind: %d", node.Kind)
	}
}

func (e *Evaluator) lookup(env *Env, name string, at *Node) (Value, error) {
	if v, ok := env.Lookup(name); ok {
		return v, nil
	}
	if e.Permissive {
		return NilVal(), nil
	}
	return Value{}, runtimeErr(UnknownIdentifier, at, "%s", name)
}

// evalList decides whether a list is a call or data. A callable head gets
// the remaining children unevaluated; otherwise every remaining child is
// evaluated in order and the last value wins.
func (e *Evaluator) evalList(node *Node, env *Env) (Value, error) {
	if node.Bracket {
		return rawValueOf(node), nil
	}
	if len(node.Children) == 0 {
		return ListVal(nil), nil
	}

	head, err := e.Eval(node.Children[0], env)
	if err != nil {
		return Value{}, err
	}
	rest := node.Children[1:]
	if head.Kind == ValProc {
		return e.Call(head, env, rest)
	}

	result := head
	for _, child := range rest {
		result, err = e.Eval(child, env)
		if err != nil {
			return Value{}, err
		}
	}
	return result, nil
}

// Call invokes a procedure with unevaluated argument nodes. It is the only
// dispatch point for both builtins and closures.
func (e *Evaluator) Call(proc Value, env *Env, args []*Node) (Value, error) {
	if proc.Kind != ValProc {
		return Value{}, runtimeErr(UnexpectedType, nil, "cannot call %s value", proc.KindName())
	}
	p := proc.Proc
	if p.IsBuiltin() {
		return p.Fn(e, env, args)
	}

	if len(args) != len(p.Params) {
		return Value{}, runtimeErr(Arity, nil, "%s: expected %d args, got %d", p.Name, len(p.Params), len(args))
	}
	values := make([]Value, len(args))
	for i, arg := range args {
		v, err := e.Eval(arg, env)
		if err != nil {
			return Value{}, err
		}
		values[i] = v
	}

	scope := p.Env
	if scope == nil {
		scope = env
	}
	return scope.WithTemporaryBindings(p.Params, values, func() (Value, error) {
		return e.Eval(p.Body, scope)
	})
}

// Apply calls proc with already-evaluated arguments.
func (e *Evaluator) Apply(proc Value, env *Env, args []Value) (Value, error) {
	nodes := make([]*Node, len(args))
	for i := range args {
		nodes[i] = valueNode(args[i])
	}
	return e.Call(proc, env, nodes)
}

// EvalValue evaluates a value one more time: symbols are looked up, a
// quote is peeled off, and a list whose head names or computes a procedure
// is called. Everything else, including plain data lists and bracket
// lists, evaluates to itself.
func (e *Evaluator) EvalValue(v Value, env *Env) (Value, error) {
	switch v.Kind {
	case ValSymbol:
		return e.lookup(env, v.Str, nil)
	case ValQuoted:
		return *v.Quoted, nil
	case ValList:
		if len(v.List) == 0 || v.Bracket {
			return v, nil
		}
		head, ok, err := e.callableHead(v.List[0], env)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return v, nil
		}
		args := make([]*Node, len(v.List)-1)
		for i, elem := range v.List[1:] {
			args[i] = syntaxOf(elem)
		}
		return e.Call(head, env, args)
	default:
		return v, nil
	}
}

// callableHead resolves the head of a list being run as code. A nested
// list head is evaluated only when it is itself a call, so that lists of
// lists stay data.
func (e *Evaluator) callableHead(v Value, env *Env) (Value, bool, error) {
	if !isCall(v, env) {
		return Value{}, false, nil
	}
	if v.Kind == ValSymbol {
		bound, _ := env.Lookup(v.Str)
		return bound, true, nil
	}
	if v.Kind == ValProc {
		return v, true, nil
	}
	head, err := e.Eval(syntaxOf(v), env)
	if err != nil {
		return Value{}, false, err
	}
	return head, head.Kind == ValProc, nil
}

// isCall reports, without evaluating anything, whether v is a procedure,
// names one, or is a list whose head is (recursively) one of those.
func isCall(v Value, env *Env) bool {
	switch v.Kind {
	case ValProc:
		return true
	case ValSymbol:
		bound, ok := env.Lookup(v.Str)
		return ok && bound.Kind == ValProc
	case ValList:
		return len(v.List) > 0 && !v.Bracket && isCall(v.List[0], env)
	}
	return false
}

// Run evaluates every top-level node in order. A failing statement is
// reported on Stderr and skipped; the rest of the program still runs.
func (e *Evaluator) Run(prog *Program, env *Env) []error {
	var errs []error
	for _, node := range prog.Nodes {
		if _, err := e.Eval(node, env); err != nil {
			err = atStatement(err, node)
			if e.Stderr != nil {
				fmt.Fprintf(e.Stderr, "error: %v\n", err)
			}
			errs = append(errs, err)
		}
	}
	return errs
}

// RunSource parses and runs src. A syntax error is reported like a failing
// statement, except that nothing runs.
func (e *Evaluator) RunSource(src string, env *Env) []error {
	prog, err := Parse(src)
	if err != nil {
		if e.Stderr != nil {
			fmt.Fprintf(e.Stderr, "error: %v\n", err)
		}
		return []error{err}
	}
	return e.Run(prog, env)
}

// EvalString evaluates every expression in input and returns the value of
// the last one, stopping at the first error.
func (e *Evaluator) EvalString(input string, env *Env) (Value, error) {
	prog, err := Parse(input)
	if err != nil {
		return Value{}, err
	}
	result := NilVal()
	for _, node := range prog.Nodes {
		result, err = e.Eval(node, env)
		if err != nil {
			return Value{}, atStatement(err, node)
		}
	}
	return result, nil
}

// atStatement gives position-less runtime errors the position of the
// top-level statement they came from.
func atStatement(err error, node *Node) error {
	var re *RuntimeError
	if errors.As(err, &re) && !re.Pos.Known() {
		re.Pos = node.Pos
	}
	return err
}

// rawValueOf converts syntax to data without evaluating anything.
func rawValueOf(n *Node) Value {
	switch n.Kind {
	case NodeInt:
		return IntVal(n.Int)
	case NodeFloat:
		return FloatVal(n.Float)
	case NodeString:
		return StringVal(n.Str)
	case NodeNil:
		return NilVal()
	case NodeIdent:
		return SymbolVal(n.Str)
	case NodeQuoted:
		return QuotedVal(rawValueOf(n.Children[0]))
	case NodeList:
		elems := make([]Value, len(n.Children))
		for i, c := range n.Children {
			elems[i] = rawValueOf(c)
		}
		list := ListVal(elems)
		list.Bracket = n.Bracket
		return list
	case NodeValue:
		return *n.Value
	default:
		return NilVal()
	}
}

// syntaxOf is the inverse of rawValueOf, used when data is run as code.
func syntaxOf(v Value) *Node {
	switch v.Kind {
	case ValSymbol:
		return &Node{Kind: NodeIdent, Str: v.Str}
	case ValQuoted:
		return &Node{Kind: NodeQuoted, Children: []*Node{syntaxOf(*v.Quoted)}}
	case ValList:
		children := make([]*Node, len(v.List))
		for i, elem := range v.List {
			children[i] = syntaxOf(elem)
		}
		return &Node{Kind: NodeList, Children: children, Bracket: v.Bracket}
	default:
		return valueNode(v)
	}
}

func valueNode(v Value) *Node {
	return &Node{Kind: NodeValue, Value: &v}
}

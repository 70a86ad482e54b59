package lisp

import (
	"fmt"
	"strings"
)

// Builtins returns the standard procedure library keyed by name.
func Builtins() map[string]BuiltinFunc {
	return map[string]BuiltinFunc{
		"println": builtinPrintln,
		// Arithmetic
		"+": builtinAdd,
		"*": builtinMul,
		// Comparison
		"=": builtinEq,
		// Control
		"if":   builtinIf,
		"eval": builtinEval,
		// Procedures
		"defn": builtinDefn,
		"fn":   builtinFn,
		// Lists
		"map":    builtinMap,
		"filter": builtinFilter,
		"reduce": builtinReduce,
	}
}

// NewRootEnv returns a fresh Env holding the builtin library.
func NewRootEnv() *Env {
	env := NewEnv()
	for name, fn := range Builtins() {
		env.Bind(name, BuiltinVal(name, fn))
	}
	return env
}

func checkArity(name string, args []*Node, want int) error {
	if len(args) != want {
		return runtimeErr(Arity, nil, "%s: expected %d args, got %d", name, want, len(args))
	}
	return nil
}

func evalArgs(ev *Evaluator, env *Env, args []*Node) ([]Value, error) {
	vals := make([]Value, len(args))
	for i, arg := range args {
		v, err := ev.Eval(arg, env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// --- Output ---

func builtinPrintln(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	vals, err := evalArgs(ev, env, args)
	if err != nil {
		return Value{}, err
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.Show()
	}
	if _, err := fmt.Fprintln(ev.Stdout, strings.Join(parts, " ")); err != nil {
		return Value{}, fmt.Errorf("println: %w", err)
	}
	return NilVal(), nil
}

// --- Arithmetic ---

// foldNumbers folds ints until the first float operand, then continues in
// float64.
func foldNumbers(ev *Evaluator, env *Env, name string, args []*Node, start int64,
	fi func(a, b int64) int64, ff func(a, b float64) float64) (Value, error) {
	acc := start
	var accF float64
	isFloat := false
	for _, arg := range args {
		v, err := ev.Eval(arg, env)
		if err != nil {
			return Value{}, err
		}
		switch v.Kind {
		case ValInt:
			if isFloat {
				accF = ff(accF, float64(v.Int))
			} else {
				acc = fi(acc, v.Int)
			}
		case ValFloat:
			if !isFloat {
				accF = float64(acc)
				isFloat = true
			}
			accF = ff(accF, v.Float)
		default:
			return Value{}, runtimeErr(UnexpectedType, arg, "%s: expected number, got %s", name, v.KindName())
		}
	}
	if isFloat {
		return FloatVal(accF), nil
	}
	return IntVal(acc), nil
}

func builtinAdd(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	return foldNumbers(ev, env, "+", args, 0,
		func(a, b int64) int64 { return a + b },
		func(a, b float64) float64 { return a + b })
}

func builtinMul(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	return foldNumbers(ev, env, "*", args, 1,
		func(a, b int64) int64 { return a * b },
		func(a, b float64) float64 { return a * b })
}

// --- Comparison ---

// builtinEq: (= a b) returns a when both render identically, else nil.
func builtinEq(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("=", args, 2); err != nil {
		return Value{}, err
	}
	vals, err := evalArgs(ev, env, args)
	if err != nil {
		return Value{}, err
	}
	if Equal(vals[0], vals[1]) {
		return vals[0], nil
	}
	return NilVal(), nil
}

// --- Control ---

// builtinIf: (if cond then [else]). Only the chosen branch is evaluated.
func builtinIf(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return Value{}, runtimeErr(Arity, nil, "if: expected 2 or 3 args, got %d", len(args))
	}
	cond, err := ev.Eval(args[0], env)
	if err != nil {
		return Value{}, err
	}
	if cond.Truthy() {
		return ev.Eval(args[1], env)
	}
	if len(args) == 3 {
		return ev.Eval(args[2], env)
	}
	return NilVal(), nil
}

// builtinEval: (eval x) evaluates x, then runs the quoted value once more.
func builtinEval(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("eval", args, 1); err != nil {
		return Value{}, err
	}
	v, err := ev.Eval(args[0], env)
	if err != nil {
		return Value{}, err
	}
	if v.Kind != ValQuoted {
		if ev.Permissive {
			return NilVal(), nil
		}
		return Value{}, runtimeErr(BadEval, args[0], "eval: expected quoted value, got %s", v.KindName())
	}
	return ev.EvalValue(*v.Quoted, env)
}

// --- Procedures ---

// paramNames evaluates a parameter list such as [a b] or '(a b).
func paramNames(ev *Evaluator, env *Env, name string, node *Node) ([]string, error) {
	v, err := ev.Eval(node, env)
	if err != nil {
		return nil, err
	}
	elems, ok := listOf(v)
	if !ok {
		return nil, runtimeErr(UnexpectedType, node, "%s: parameters must be a list, got %s", name, v.KindName())
	}
	params := make([]string, len(elems))
	for i, p := range elems {
		if p.Kind != ValSymbol {
			return nil, runtimeErr(UnexpectedType, node, "%s: parameter names must be identifiers, got %s", name, p.KindName())
		}
		params[i] = p.Str
	}
	return params, nil
}

// builtinDefn: (defn name [params...] body) binds a closure in env.
func builtinDefn(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("defn", args, 3); err != nil {
		return Value{}, err
	}
	if args[0].Kind != NodeIdent {
		return Value{}, runtimeErr(UnexpectedType, args[0], "defn: name must be an identifier, got %s", args[0])
	}
	name := args[0].Str
	params, err := paramNames(ev, env, "defn", args[1])
	if err != nil {
		return Value{}, err
	}
	env.Bind(name, ProcVal(&Procedure{Name: name, Params: params, Body: args[2], Env: env}))
	return NilVal(), nil
}

// builtinFn: (fn [params...] body) returns an anonymous closure.
func builtinFn(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("fn", args, 2); err != nil {
		return Value{}, err
	}
	params, err := paramNames(ev, env, "fn", args[0])
	if err != nil {
		return Value{}, err
	}
	return ProcVal(&Procedure{Name: "anonymous", Params: params, Body: args[1], Env: env}), nil
}

// --- Lists ---

// procAndList evaluates a (procedure, list) argument pair.
func procAndList(ev *Evaluator, env *Env, name string, procNode, listNode *Node) (Value, []Value, error) {
	proc, err := ev.Eval(procNode, env)
	if err != nil {
		return Value{}, nil, err
	}
	if proc.Kind != ValProc {
		return Value{}, nil, runtimeErr(UnexpectedType, procNode, "%s: expected procedure, got %s", name, proc.KindName())
	}
	lv, err := ev.Eval(listNode, env)
	if err != nil {
		return Value{}, nil, err
	}
	elems, ok := listOf(lv)
	if !ok {
		return Value{}, nil, runtimeErr(UnexpectedType, listNode, "%s: expected list, got %s", name, lv.KindName())
	}
	return proc, elems, nil
}

func builtinMap(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("map", args, 2); err != nil {
		return Value{}, err
	}
	proc, elems, err := procAndList(ev, env, "map", args[0], args[1])
	if err != nil {
		return Value{}, err
	}
	result := make([]Value, len(elems))
	for i, elem := range elems {
		v, err := ev.EvalValue(elem, env)
		if err != nil {
			return Value{}, err
		}
		result[i], err = ev.Apply(proc, env, []Value{v})
		if err != nil {
			return Value{}, err
		}
	}
	return ListVal(result), nil
}

// builtinFilter keeps an element when the predicate returns nil.
func builtinFilter(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("filter", args, 2); err != nil {
		return Value{}, err
	}
	proc, elems, err := procAndList(ev, env, "filter", args[0], args[1])
	if err != nil {
		return Value{}, err
	}
	kept := []Value{}
	for _, elem := range elems {
		v, err := ev.EvalValue(elem, env)
		if err != nil {
			return Value{}, err
		}
		r, err := ev.Apply(proc, env, []Value{v})
		if err != nil {
			return Value{}, err
		}
		if !r.Truthy() {
			kept = append(kept, elem)
		}
	}
	return ListVal(kept), nil
}

// builtinReduce: (reduce f init list) is a left fold.
func builtinReduce(ev *Evaluator, env *Env, args []*Node) (Value, error) {
	if err := checkArity("reduce", args, 3); err != nil {
		return Value{}, err
	}
	proc, err := ev.Eval(args[0], env)
	if err != nil {
		return Value{}, err
	}
	if proc.Kind != ValProc {
		return Value{}, runtimeErr(UnexpectedType, args[0], "reduce: expected procedure, got %s", proc.KindName())
	}
	acc, err := ev.Eval(args[1], env)
	if err != nil {
		return Value{}, err
	}
	lv, err := ev.Eval(args[2], env)
	if err != nil {
		return Value{}, err
	}
	elems, ok := listOf(lv)
	if !ok {
		return Value{}, runtimeErr(UnexpectedType, args[2], "reduce: expected list, got %s", lv.KindName())
	}
	for _, elem := range elems {
		v, err := ev.EvalValue(elem, env)
		if err != nil {
			return Value{}, err
		}
		acc, err = ev.Apply(proc, env, []Value{acc, v})
		if err != nil {
			return Value{}, err
		}
	}
	return acc, nil
}

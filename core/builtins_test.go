package lisp

import (
	"bytes"
	"fmt"
	"testing"
)

// --- println ---

func TestPrintln(t *testing.T) {
	out := testOutput(t, `(println 1 "a b" '(1 "x") nil 2.5 [1 2])`)
	want := "1 a b '(1 \"x\") nil 2.5 (1 2)\n"
	if out != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}

func TestPrintlnReturnsNil(t *testing.T) {
	testEval(t, "(println)", NilVal())
}

// --- Arithmetic ---

func TestAddMulIntegers(t *testing.T) {
	for _, a := range []int64{-3, 0, 1, 7, 1 << 40} {
		for _, b := range []int64{-5, 0, 2, 11} {
			testEval(t, fmt.Sprintf("(+ %d %d)", a, b), IntVal(a+b))
			testEval(t, fmt.Sprintf("(* %d %d)", a, b), IntVal(a*b))
		}
	}
}

func TestAddMulIdentity(t *testing.T) {
	testEval(t, "(+)", IntVal(0))
	testEval(t, "(*)", IntVal(1))
	testEval(t, "(+ 1 2 3 4)", IntVal(10))
	testEval(t, "(* 1 2 3 4)", IntVal(24))
}

func TestArithmeticFloatPromotion(t *testing.T) {
	testEval(t, "(+ 1 2.5)", FloatVal(3.5))
	testEval(t, "(* 2 1.5 2)", FloatVal(6))
	testEval(t, "(+ 0.5 0.5)", FloatVal(1))
}

func TestArithmeticTypeError(t *testing.T) {
	re := testEvalError(t, `(+ 1 "a")`, UnexpectedType)
	if re.Pos != (Pos{Row: 1, Col: 6}) {
		t.Fatalf("expected position 1:6, got %s", re.Pos)
	}
	testEvalError(t, `(* nil 2)`, UnexpectedType)
}

// --- = ---

func TestEq(t *testing.T) {
	testEval(t, "(= 1 1)", IntVal(1))
	testEval(t, `(= "a" "a")`, StringVal("a"))
	testEval(t, "(= 1 2)", NilVal())
	testEval(t, "(= 1 1.0)", NilVal())
	testEval(t, "(= [1 2] [1 2])", ints(1, 2))
	testEval(t, "(= [1 2] '(1 2))", NilVal())
	testEvalError(t, "(= 1)", Arity)
}

// --- if ---

func TestIf(t *testing.T) {
	testEval(t, "(if nil 1 2)", IntVal(2))
	testEval(t, "(if 0 1 2)", IntVal(1))
	testEval(t, `(if "" 1 2)`, IntVal(1))
	testEval(t, "(if [] 1 2)", IntVal(1))
	testEval(t, "(if nil 1)", NilVal())
	testEval(t, "(if (= 1 2) 1 2)", IntVal(2))
}

func TestIfEvaluatesOneBranch(t *testing.T) {
	out := testOutput(t, `(if 1 (println "then") (println "else")) (if nil (println "then") (println "else"))`)
	if out != "then\nelse\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestIfArity(t *testing.T) {
	testEvalError(t, "(if 1)", Arity)
	testEvalError(t, "(if 1 2 3 4)", Arity)
}

// --- defn / fn ---

func TestDefnBindsClosure(t *testing.T) {
	env := NewRootEnv()
	var out bytes.Buffer
	v, err := newTestEvaluator(&out).EvalString("(defn add [a b] (+ a b))", env)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != ValNil {
		t.Fatalf("defn should return nil, got %s", v)
	}
	add, ok := env.Lookup("add")
	if !ok || add.Kind != ValProc || add.Proc.IsBuiltin() {
		t.Fatalf("expected closure bound to add, got %s", add)
	}
	if add.Show() != "<fn add [a b]>" {
		t.Fatalf("unexpected rendering %q", add.Show())
	}
}

func TestDefnQuotedParams(t *testing.T) {
	testEval(t, "(defn sq '(x) (* x x)) (sq 6)", IntVal(36))
}

func TestDefnErrors(t *testing.T) {
	testEvalError(t, "(defn 1 [a] a)", UnexpectedType)
	testEvalError(t, "(defn f [1] 1)", UnexpectedType)
	testEvalError(t, "(defn f 5 1)", UnexpectedType)
	testEvalError(t, "(defn f [a])", Arity)
}

func TestFn(t *testing.T) {
	testEval(t, "((fn [x] (* x x)) 5)", IntVal(25))
	var out bytes.Buffer
	v, err := newTestEvaluator(&out).EvalString("(fn [x y] x)", NewRootEnv())
	if err != nil {
		t.Fatal(err)
	}
	if v.Show() != "<fn anonymous [x y]>" {
		t.Fatalf("unexpected rendering %q", v.Show())
	}
}

func TestFnIsNotBound(t *testing.T) {
	env := NewRootEnv()
	before := len(env.Names())
	var out bytes.Buffer
	if _, err := newTestEvaluator(&out).EvalString("(fn [x] x)", env); err != nil {
		t.Fatal(err)
	}
	if len(env.Names()) != before {
		t.Fatalf("fn changed the environment: %v", env.Names())
	}
}

// --- eval ---

func TestEvalBuiltin(t *testing.T) {
	testEval(t, "(eval '(* 6 7))", IntVal(42))
	testEval(t, "(eval '[1 2])", ints(1, 2))
}

func TestEvalRequiresQuoted(t *testing.T) {
	testEvalError(t, "(eval 5)", BadEval)

	var out bytes.Buffer
	ev := newTestEvaluator(&out)
	ev.Permissive = true
	v, err := ev.EvalString("(eval 5)", NewRootEnv())
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != ValNil {
		t.Fatalf("expected nil in permissive mode, got %s", v)
	}
}

// --- map / filter / reduce ---

func TestMap(t *testing.T) {
	testEval(t, "(map (fn [x] (* x x)) '(1 2 3))", ints(1, 4, 9))
	testEval(t, "(defn square [x] (* x x)) (map square '(1 2 3))", ints(1, 4, 9))
	testEval(t, "(map (fn [x] x) [])", ListVal(nil))
}

func TestMapReevaluatesElementsInCallerEnv(t *testing.T) {
	env := NewRootEnv()
	env.Bind("a", IntVal(10))
	env.Bind("b", IntVal(20))
	var out bytes.Buffer
	v, err := newTestEvaluator(&out).EvalString("(map (fn [x] (+ x 1)) [a b])", env)
	if err != nil {
		t.Fatal(err)
	}
	if !sameValue(v, ints(11, 21)) {
		t.Fatalf("expected (11 21), got %s", v)
	}
}

func TestMapErrors(t *testing.T) {
	testEvalError(t, "(map 1 '(1 2))", UnexpectedType)
	testEvalError(t, "(map (fn [x] x) 5)", UnexpectedType)
	testEvalError(t, "(map (fn [x] x))", Arity)
}

// filter keeps elements whose predicate result is nil.
func TestFilterKeepsNilResults(t *testing.T) {
	testEval(t, "(filter (fn [x] (= x 2)) '(1 2 3))", ints(1, 3))
	testEval(t, "(filter (fn [x] nil) [1 2])", ints(1, 2))
	testEval(t, "(filter (fn [x] x) [1 2])", ListVal(nil))
}

func TestReduce(t *testing.T) {
	testEval(t, "(reduce + 0 '(1 2 3))", IntVal(6))
	testEval(t, "(reduce (fn [acc x] (* acc x)) 1 [1 2 3 4])", IntVal(24))
	testEval(t, "(reduce + 5 [])", IntVal(5))
	testEvalError(t, "(reduce + 0 7)", UnexpectedType)
	testEvalError(t, "(reduce 0 0 [1])", UnexpectedType)
}

func TestReduceIsLeftFold(t *testing.T) {
	out := testOutput(t, "(reduce (fn [acc x] (println acc x)) 0 [1 2])")
	if out != "0 1\nnil 2\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

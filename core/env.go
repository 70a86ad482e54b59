package lisp

import "sort"

// Env is the shared name-to-value mapping ("space"). One Env is threaded
// through a whole program run and mutated in place; closure calls overlay
// their parameters on it and restore the previous bindings afterwards.
//
// An Env must not be used by more than one goroutine at a time.
type Env struct {
	vars map[string]Value
}

func NewEnv() *Env {
	return &Env{vars: make(map[string]Value)}
}

func (e *Env) Lookup(name string) (Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *Env) Bind(name string, v Value) {
	e.vars[name] = v
}

func (e *Env) Unbind(name string) {
	delete(e.vars, name)
}

// Names returns every bound name in sorted order.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for k := range e.vars {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type savedBinding struct {
	name  string
	value Value
	bound bool
}

// WithTemporaryBindings binds names to values, runs body, and puts every
// overwritten binding back (removing names that were unbound before) on all
// exit paths, including errors and panics.
func (e *Env) WithTemporaryBindings(names []string, values []Value, body func() (Value, error)) (Value, error) {
	saved := make([]savedBinding, len(names))
	for i, name := range names {
		v, ok := e.vars[name]
		saved[i] = savedBinding{name: name, value: v, bound: ok}
	}
	defer func() {
		// Reverse order so a repeated parameter name ends up with its
		// original binding.
		for i := len(saved) - 1; i >= 0; i-- {
			s := saved[i]
			if s.bound {
				e.vars[s.name] = s.value
			} else {
				delete(e.vars, s.name)
			}
		}
	}()
	for i, name := range names {
		e.vars[name] = values[i]
	}
	return body()
}

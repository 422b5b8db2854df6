package flow

import (
	"fmt"
	"sort"
)

// NextFunc computes the next question id from the answer to the current
// question. The full answer map is passed for functions that need it.
// An empty id means the questionnaire ends here.
type NextFunc func(answer any, answers Answers) (string, error)

// Predicate is a pure test over the accumulated answers, used for skip_if
// and for branching rule conditions.
type Predicate func(answers Answers) (bool, error)

// Registry names the functions a question graph refers to, so the graph
// itself stays plain data.
type Registry struct {
	funcs      map[string]NextFunc
	predicates map[string]Predicate
}

func NewRegistry() *Registry {
	return &Registry{
		funcs:      make(map[string]NextFunc),
		predicates: make(map[string]Predicate),
	}
}

func (r *Registry) RegisterFunc(name string, fn NextFunc) {
	r.funcs[name] = fn
}

func (r *Registry) RegisterPredicate(name string, p Predicate) {
	r.predicates[name] = p
}

func (r *Registry) Func(name string) (NextFunc, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, fmt.Errorf("branch function %q is not registered", name)
	}
	return fn, nil
}

func (r *Registry) Predicate(name string) (Predicate, error) {
	p, ok := r.predicates[name]
	if !ok {
		return nil, fmt.Errorf("predicate %q is not registered", name)
	}
	return p, nil
}

// Names lists registered function and predicate names, sorted.
func (r *Registry) Names() (funcs []string, predicates []string) {
	for name := range r.funcs {
		funcs = append(funcs, name)
	}
	for name := range r.predicates {
		predicates = append(predicates, name)
	}
	sort.Strings(funcs)
	sort.Strings(predicates)
	return funcs, predicates
}

// callNext runs fn, converting a panic into an error.
func callNext(fn NextFunc, answer any, answers Answers) (next string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("branch function panicked: %v", r)
		}
	}()
	return fn(answer, answers)
}

func callPredicate(p Predicate, answers Answers) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panicked: %v", r)
		}
	}()
	return p(answers)
}

package flow

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
)

// Graph is the static question set with its branching edges. It is built
// and validated once and never mutated afterwards.
type Graph struct {
	questions []Question
	index     map[string]int
	start     string
	rules     map[string][]compiledRule
	ruleList  []Rule
	funcs     map[string]NextFunc
	skips     map[string]Predicate
	patterns  map[string]*regexp.Regexp
}

type compiledRule struct {
	Rule
	when Predicate
}

// NewGraph validates the questions and rules and builds a Graph. start may be
// empty, in which case the first question is the entry point. Every problem
// found is reported in the joined error.
func NewGraph(questions []Question, rules []Rule, start string, reg *Registry) (*Graph, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	if len(questions) == 0 {
		return nil, errors.New("question graph is empty")
	}

	g := &Graph{
		questions: make([]Question, len(questions)),
		index:     make(map[string]int, len(questions)),
		rules:     make(map[string][]compiledRule),
		ruleList:  make([]Rule, len(rules)),
		funcs:     make(map[string]NextFunc),
		skips:     make(map[string]Predicate),
		patterns:  make(map[string]*regexp.Regexp),
	}
	copy(g.ruleList, rules)

	var errs []error
	for i, q := range questions {
		q = cloneQuestion(q)
		g.questions[i] = q
		if q.ID == "" {
			errs = append(errs, fmt.Errorf("question at position %d has no id", i))
			continue
		}
		if _, dup := g.index[q.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate question id %q", q.ID))
			continue
		}
		g.index[q.ID] = i
	}

	for _, q := range g.questions {
		if q.ID == "" {
			continue
		}
		errs = append(errs, g.compileQuestion(q, reg)...)
	}

	for _, r := range rules {
		if _, ok := g.index[r.QuestionID]; !ok {
			errs = append(errs, fmt.Errorf("rule refers to unknown question %q", r.QuestionID))
			continue
		}
		if _, ok := g.index[r.Next]; !ok {
			errs = append(errs, fmt.Errorf("rule at %q targets unknown question %q", r.QuestionID, r.Next))
			continue
		}
		p, err := reg.Predicate(r.When)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule at %q: %w", r.QuestionID, err))
			continue
		}
		g.rules[r.QuestionID] = append(g.rules[r.QuestionID], compiledRule{Rule: r, when: p})
	}

	if start == "" {
		start = g.questions[0].ID
	}
	if _, ok := g.index[start]; !ok {
		errs = append(errs, fmt.Errorf("start question %q not found", start))
	}
	g.start = start

	if len(errs) == 0 {
		if err := g.checkAcyclic(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return g, nil
}

func (g *Graph) compileQuestion(q Question, reg *Registry) []error {
	var errs []error
	if !q.Type.Valid() {
		errs = append(errs, fmt.Errorf("question %q has unknown type %q", q.ID, q.Type))
	}
	if q.Type.HasOptions() && len(q.Options) == 0 {
		errs = append(errs, fmt.Errorf("question %q of type %q has no options", q.ID, q.Type))
	}
	if q.Validation != nil && q.Validation.Pattern != "" {
		re, err := regexp.Compile(q.Validation.Pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("question %q has invalid pattern: %w", q.ID, err))
		} else {
			g.patterns[q.ID] = re
		}
	}
	if q.SkipIf != "" {
		p, err := reg.Predicate(q.SkipIf)
		if err != nil {
			errs = append(errs, fmt.Errorf("question %q skip_if: %w", q.ID, err))
		} else {
			g.skips[q.ID] = p
		}
	}
	if q.Next == nil {
		return errs
	}
	switch q.Next.Kind {
	case BranchLiteral:
		if q.Next.Target == "" {
			errs = append(errs, fmt.Errorf("question %q has a literal branch without target", q.ID))
		}
	case BranchMapped:
		if len(q.Next.Cases) == 0 && q.Next.Default == "" {
			errs = append(errs, fmt.Errorf("question %q has a mapped branch without cases", q.ID))
		}
	case BranchComputed:
		fn, err := reg.Func(q.Next.Func)
		if err != nil {
			errs = append(errs, fmt.Errorf("question %q: %w", q.ID, err))
		} else {
			g.funcs[q.ID] = fn
		}
	default:
		errs = append(errs, fmt.Errorf("question %q has unknown branch kind %q", q.ID, q.Next.Kind))
	}
	for _, target := range q.Next.PossibleTargets() {
		if _, ok := g.index[target]; !ok {
			errs = append(errs, fmt.Errorf("question %q branches to unknown question %q", q.ID, target))
		}
	}
	return errs
}

// checkAcyclic walks every possible edge, including rule overrides.
func (g *Graph) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(g.questions))
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("question graph has a cycle: %v", append(path, id))
		case done:
			return nil
		}
		state[id] = visiting
		path = append(slices.Clone(path), id)
		for _, next := range g.edges(id) {
			if err := visit(next, path); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, q := range g.questions {
		if err := visit(q.ID, nil); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) edges(id string) []string {
	q := g.questions[g.index[id]]
	out := q.Next.PossibleTargets()
	for _, r := range g.rules[id] {
		out = append(out, r.Next)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Edges returns every question id reachable in one step from id, across all
// answers. It is used for offline inspection of the graph.
func (g *Graph) Edges(id string) ([]string, error) {
	if _, ok := g.index[id]; !ok {
		return nil, &NotFoundError{QuestionID: id}
	}
	return g.edges(id), nil
}

func (g *Graph) Start() string { return g.start }

func (g *Graph) Len() int { return len(g.questions) }

func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Questions returns a copy of the question list in definition order.
func (g *Graph) Questions() []Question {
	out := make([]Question, len(g.questions))
	for i, q := range g.questions {
		out[i] = cloneQuestion(q)
	}
	return out
}

func (g *Graph) Question(id string) (Question, error) {
	i, ok := g.index[id]
	if !ok {
		return Question{}, &NotFoundError{QuestionID: id}
	}
	return cloneQuestion(g.questions[i]), nil
}

func (g *Graph) Rules() []Rule {
	return slices.Clone(g.ruleList)
}

// Section returns the section label of a question, or "" if it is unknown.
func (g *Graph) Section(id string) string {
	i, ok := g.index[id]
	if !ok {
		return ""
	}
	return g.questions[i].Section
}

func (g *Graph) question(id string) (*Question, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.questions[i], true
}

func cloneQuestion(q Question) Question {
	q.Options = slices.Clone(q.Options)
	if q.Next != nil {
		b := *q.Next
		b.Cases = maps.Clone(q.Next.Cases)
		b.Targets = slices.Clone(q.Next.Targets)
		q.Next = &b
	}
	if q.Validation != nil {
		v := *q.Validation
		q.Validation = &v
	}
	return q
}

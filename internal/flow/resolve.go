package flow

import (
	"fmt"
	"math"
	"slices"
)

// ResolveNext returns the id of the next question the user will actually
// see after currentID, or "" when the questionnaire ends. answers must
// already contain the answer given for currentID.
//
// Branching rules for currentID are tried first, in order. Otherwise the
// question's own branch is used. Skipped targets are chased through their
// own branches until a visible question or the end is reached.
// ResolveNext has no side effects.
func (g *Graph) ResolveNext(currentID string, answers Answers) (string, error) {
	q, ok := g.question(currentID)
	if !ok {
		return "", &NotFoundError{QuestionID: currentID}
	}
	candidate, err := g.branch(q, answers, true)
	if err != nil {
		return "", err
	}
	return g.chaseSkips(candidate, answers)
}

// Skipped reports whether question id is bypassed under answers.
func (g *Graph) Skipped(id string, answers Answers) (bool, error) {
	q, ok := g.question(id)
	if !ok {
		return false, &NotFoundError{QuestionID: id}
	}
	return g.skipped(q, answers)
}

func (g *Graph) skipped(q *Question, answers Answers) (bool, error) {
	p, ok := g.skips[q.ID]
	if !ok {
		return false, nil
	}
	skip, err := callPredicate(p, answers)
	if err != nil {
		return false, &BranchingError{QuestionID: q.ID, Err: fmt.Errorf("skip_if %q: %w", q.SkipIf, err)}
	}
	return skip, nil
}

func (g *Graph) branch(q *Question, answers Answers, withRules bool) (string, error) {
	if withRules {
		for _, r := range g.rules[q.ID] {
			ok, err := callPredicate(r.when, answers)
			if err != nil {
				return "", &BranchingError{QuestionID: q.ID, Err: fmt.Errorf("rule %q: %w", r.When, err)}
			}
			if ok {
				return r.Next, nil
			}
		}
	}

	b := q.Next
	if b == nil {
		return "", nil
	}
	switch b.Kind {
	case BranchLiteral:
		return b.Target, nil
	case BranchMapped:
		if next, ok := b.Cases[answerKey(answers[q.ID])]; ok {
			return next, nil
		}
		return b.Default, nil
	case BranchComputed:
		next, err := callNext(g.funcs[q.ID], answers[q.ID], answers)
		if err != nil {
			return "", &BranchingError{QuestionID: q.ID, Err: err}
		}
		if next != "" && !slices.Contains(b.Targets, next) {
			return "", &BranchingError{
				QuestionID: q.ID,
				Err:        fmt.Errorf("function %q returned undeclared target %q", b.Func, next),
			}
		}
		return next, nil
	}
	return "", &BranchingError{QuestionID: q.ID, Err: fmt.Errorf("unknown branch kind %q", b.Kind)}
}

func (g *Graph) chaseSkips(candidate string, answers Answers) (string, error) {
	seen := make(map[string]bool)
	for candidate != "" {
		if seen[candidate] {
			return "", &BranchingError{QuestionID: candidate, Err: ErrCycle}
		}
		seen[candidate] = true

		q, ok := g.question(candidate)
		if !ok {
			return "", &BranchingError{QuestionID: candidate, Err: &NotFoundError{QuestionID: candidate}}
		}
		skip, err := g.skipped(q, answers)
		if err != nil {
			return "", err
		}
		if !skip {
			return candidate, nil
		}
		candidate, err = g.branch(q, answers, false)
		if err != nil {
			return "", err
		}
	}
	return "", nil
}

// ProgressPercentage is round(100 * answered / total) over the questions not
// skipped under answers, or 100 when every question is skipped. It is
// recomputed on every call.
func (g *Graph) ProgressPercentage(answers Answers) (int, error) {
	answered, total, err := g.count(g.questions, answers)
	if err != nil {
		return 0, err
	}
	return percentage(answered, total), nil
}

type SectionProgress struct {
	Section    string `json:"section"`
	Answered   int    `json:"answered"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// SectionProgress reports progress per section, in order of first
// appearance. A section whose questions are all skipped counts as complete.
func (g *Graph) SectionProgress(answers Answers) ([]SectionProgress, error) {
	var order []string
	bySection := make(map[string][]Question)
	for _, q := range g.questions {
		if _, ok := bySection[q.Section]; !ok {
			order = append(order, q.Section)
		}
		bySection[q.Section] = append(bySection[q.Section], q)
	}

	out := make([]SectionProgress, 0, len(order))
	for _, section := range order {
		answered, total, err := g.count(bySection[section], answers)
		if err != nil {
			return nil, err
		}
		out = append(out, SectionProgress{
			Section:    section,
			Answered:   answered,
			Total:      total,
			Percentage: percentage(answered, total),
		})
	}
	return out, nil
}

// LastAnsweredCheckpoint returns the last checkpoint question, in graph
// order, that is answered and not skipped, or "".
func (g *Graph) LastAnsweredCheckpoint(answers Answers) (string, error) {
	for i := len(g.questions) - 1; i >= 0; i-- {
		q := &g.questions[i]
		if !q.Checkpoint || !answers.Has(q.ID) {
			continue
		}
		skip, err := g.skipped(q, answers)
		if err != nil {
			return "", err
		}
		if !skip {
			return q.ID, nil
		}
	}
	return "", nil
}

func (g *Graph) count(questions []Question, answers Answers) (answered, total int, err error) {
	for i := range questions {
		skip, err := g.skipped(&questions[i], answers)
		if err != nil {
			return 0, 0, err
		}
		if skip {
			continue
		}
		total++
		if answers.Has(questions[i].ID) {
			answered++
		}
	}
	return answered, total, nil
}

// percentage treats an empty set of relevant questions as complete.
func percentage(answered, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(answered) / float64(total)))
}

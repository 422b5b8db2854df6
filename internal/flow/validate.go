package flow

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NormalizeAnswer converts a raw answer (typically decoded from JSON) into
// the canonical value for the question type and checks its validation
// constraints.
func (g *Graph) NormalizeAnswer(questionID string, raw any) (any, error) {
	q, ok := g.question(questionID)
	if !ok {
		return nil, &NotFoundError{QuestionID: questionID}
	}
	if raw == nil {
		if q.Validation != nil && q.Validation.Required {
			return nil, &ValidationError{QuestionID: q.ID, Reason: "answer is required"}
		}
		return nil, nil
	}
	value, err := coerce(q, raw)
	if err != nil {
		return nil, err
	}
	if err := g.checkConstraints(q, value); err != nil {
		return nil, err
	}
	return value, nil
}

// NormalizeAnswers coerces restored answers back to canonical types. Values
// that cannot be coerced, and answers to unknown questions, are kept as is.
func (g *Graph) NormalizeAnswers(answers Answers) Answers {
	out := make(Answers, len(answers))
	for id, raw := range answers {
		q, ok := g.question(id)
		if !ok || raw == nil {
			out[id] = cloneValue(raw)
			continue
		}
		value, err := coerce(q, raw)
		if err != nil {
			out[id] = cloneValue(raw)
			continue
		}
		out[id] = value
	}
	return out
}

func coerce(q *Question, raw any) (any, error) {
	invalid := func(format string, args ...any) error {
		return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf(format, args...)}
	}

	switch q.Type {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid("expected text, got %T", raw)
		}
		return s, nil

	case TypeChoice:
		s, ok := raw.(string)
		if !ok {
			return nil, invalid("expected a single option, got %T", raw)
		}
		if !slices.Contains(q.Options, s) {
			return nil, invalid("%q is not an option", s)
		}
		return s, nil

	case TypeMultiple:
		var items []string
		switch v := raw.(type) {
		case string:
			items = []string{v}
		case []string:
			items = v
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, invalid("expected options as text, got %T", item)
				}
				items = append(items, s)
			}
		default:
			return nil, invalid("expected a list of options, got %T", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if !slices.Contains(q.Options, item) {
				return nil, invalid("%q is not an option", item)
			}
			if !slices.Contains(out, item) {
				out = append(out, item)
			}
		}
		return out, nil

	case TypeScale:
		var n int
		switch v := raw.(type) {
		case int:
			n = v
		case int64:
			n = int(v)
		case float64:
			if v != math.Trunc(v) {
				return nil, invalid("scale answer must be a whole number")
			}
			n = int(v)
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, invalid("scale answer must be a number")
			}
			n = parsed
		default:
			return nil, invalid("expected a number, got %T", raw)
		}
		if n < ScaleMin || n > ScaleMax {
			return nil, invalid("scale answer must be between %d and %d", ScaleMin, ScaleMax)
		}
		return n, nil

	case TypeYesNo, TypeLikeDislike:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, invalid("expected true or false, got %T", raw)
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "like", "true":
			return true, nil
		case "no", "dislike", "false":
			return false, nil
		}
		return nil, invalid("%q is not a valid answer", s)
	}
	return nil, invalid("unsupported question type %q", q.Type)
}

func (g *Graph) checkConstraints(q *Question, value any) error {
	v := q.Validation
	if v == nil {
		return nil
	}
	invalid := func(format string, args ...any) error {
		return &ValidationError{QuestionID: q.ID, Reason: fmt.Sprintf(format, args...)}
	}

	switch val := value.(type) {
	case string:
		n := utf8.RuneCountInString(strings.TrimSpace(val))
		if v.Required && n == 0 {
			return invalid("answer is required")
		}
		if v.MinLength > 0 && n < v.MinLength {
			return invalid("answer must be at least %d characters", v.MinLength)
		}
		if v.MaxLength > 0 && n > v.MaxLength {
			return invalid("answer must be at most %d characters", v.MaxLength)
		}
		if re, ok := g.patterns[q.ID]; ok && !re.MatchString(val) {
			return invalid("answer does not match the expected format")
		}
	case []string:
		if v.Required && len(val) == 0 {
			return invalid("select at least one option")
		}
		if v.MinLength > 0 && len(val) < v.MinLength {
			return invalid("select at least %d options", v.MinLength)
		}
		if v.MaxLength > 0 && len(val) > v.MaxLength {
			return invalid("select at most %d options", v.MaxLength)
		}
	}
	return nil
}

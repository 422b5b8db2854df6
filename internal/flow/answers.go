package flow

import (
	"fmt"
	"math"
	"slices"
)

// Answers maps question ids to normalized answer values: string for text and
// choice, []string for multiple, int for scale, bool for yes/no and
// like/dislike. Values decoded from JSON are also understood by the accessors.
type Answers map[string]any

// Clone returns a deep copy; slices are never shared with the receiver.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// With returns a copy of a with id set to value. The receiver is unchanged.
func (a Answers) With(id string, value any) Answers {
	out := a.Clone()
	out[id] = cloneValue(value)
	return out
}

func (a Answers) Has(id string) bool {
	_, ok := a[id]
	return ok
}

func (a Answers) String(id string) string {
	switch v := a[id].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a Answers) Strings(id string) []string {
	return toStrings(a[id])
}

// Contains reports whether the list answer for id includes any of values.
func (a Answers) Contains(id string, values ...string) bool {
	list := a.Strings(id)
	for _, v := range values {
		if slices.Contains(list, v) {
			return true
		}
	}
	return false
}

func (a Answers) Int(id string) (int, bool) {
	switch v := a[id].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

func (a Answers) Bool(id string) (bool, bool) {
	v, ok := a[id].(bool)
	return v, ok
}

func toStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneValue(v any) any {
	switch list := v.(type) {
	case []string:
		return slices.Clone(list)
	case []any:
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return Answers(list).Clone()
	case Answers:
		return list.Clone()
	}
	return v
}

// answerKey renders an answer as the lookup key used by mapped branches.
func answerKey(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case float64:
		if val == math.Trunc(val) {
			return fmt.Sprintf("%d", int64(val))
		}
	}
	return fmt.Sprint(v)
}

package flow

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingStore struct {
	data       map[string]string
	sets       map[string]int
	failSet    error
	failKey    string // when set, failSet only applies to this key
	failDelete error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: map[string]string{}, sets: map[string]int{}}
}

func (s *recordingStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *recordingStore) Set(_ context.Context, key, value string) error {
	if s.failSet != nil && (s.failKey == "" || s.failKey == key) {
		return s.failSet
	}
	s.sets[key]++
	s.data[key] = value
	return nil
}

func (s *recordingStore) Delete(_ context.Context, key string) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.data, key)
	return nil
}

var errStoreDown = errors.New("store unavailable")

// sampleGraph builds the Q1..Q6 graph used throughout the tests:
//
//	Q1 -> Q2; Q2 -> Q4 when three or more picks, else Q3; Q3 -> Q5;
//	Q5 (skipped with three or more picks, checkpoint) -> Q6; Q4 -> end; Q6 -> end.
func sampleGraph(t *testing.T) *Graph {
	t.Helper()
	reg := NewRegistry()
	reg.RegisterFunc("by_pick_count", func(answer any, _ Answers) (string, error) {
		if len(toStrings(answer)) >= 3 {
			return "Q4", nil
		}
		return "Q3", nil
	})
	reg.RegisterPredicate("many_picks", func(a Answers) (bool, error) {
		return len(a.Strings("Q2")) >= 3, nil
	})

	questions := []Question{
		{ID: "Q1", Section: "Intro", Type: TypeText, Next: &Branch{Kind: BranchLiteral, Target: "Q2"}, Checkpoint: true},
		{
			ID: "Q2", Section: "Intro", Type: TypeMultiple, Options: []string{"a", "b", "c", "d"},
			Next: &Branch{Kind: BranchComputed, Func: "by_pick_count", Targets: []string{"Q3", "Q4"}},
		},
		{ID: "Q3", Section: "Detail", Type: TypeText, Next: &Branch{Kind: BranchLiteral, Target: "Q5"}},
		{ID: "Q4", Section: "Detail", Type: TypeScale},
		{ID: "Q5", Section: "Detail", Type: TypeYesNo, Next: &Branch{Kind: BranchLiteral, Target: "Q6"}, SkipIf: "many_picks", Checkpoint: true},
		{ID: "Q6", Section: "Wrap-up", Type: TypeLikeDislike},
	}
	g, err := NewGraph(questions, nil, "", reg)
	if err != nil {
		t.Fatalf("Failed to build sample graph: %v", err)
	}
	return g
}

// linearGraph builds n text questions chained in order, none skipped.
func linearGraph(t *testing.T, n int) *Graph {
	t.Helper()
	questions := make([]Question, n)
	for i := range questions {
		questions[i] = Question{ID: qid(i), Section: "All", Type: TypeText}
		if i+1 < n {
			questions[i].Next = &Branch{Kind: BranchLiteral, Target: qid(i + 1)}
		}
	}
	g, err := NewGraph(questions, nil, "", nil)
	if err != nil {
		t.Fatalf("Failed to build linear graph: %v", err)
	}
	return g
}

func qid(i int) string {
	return "L" + string(rune('A'+i))
}

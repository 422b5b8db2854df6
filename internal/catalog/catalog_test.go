package catalog

import (
	"slices"
	"strings"
	"testing"

	"questionnaire-service/internal/flow"
)

var story = strings.Repeat("I ran a small market stall every summer. ", 2)

func walk(t *testing.T, g *flow.Graph, script map[string]any) []string {
	t.Helper()
	answers := flow.Answers{}
	current := g.Start()
	var visited []string
	for current != "" {
		if len(visited) > g.Len() {
			t.Fatalf("Walk did not terminate: %v", visited)
		}
		visited = append(visited, current)
		raw, ok := script[current]
		if !ok {
			t.Fatalf("Script has no answer for %q (visited %v)", current, visited)
		}
		value, err := g.NormalizeAnswer(current, raw)
		if err != nil {
			t.Fatalf("Answer for %q rejected: %v", current, err)
		}
		answers = answers.With(current, value)
		next, err := g.ResolveNext(current, answers)
		if err != nil {
			t.Fatalf("ResolveNext(%s) failed: %v", current, err)
		}
		current = next
	}
	return visited
}

func TestDefault_Loads(t *testing.T) {
	g, err := Default()
	if err != nil {
		t.Fatalf("Failed to load built-in questionnaire: %v", err)
	}
	if g.Start() != "early_experiences" {
		t.Errorf("Expected start early_experiences, got %q", g.Start())
	}
	if g.Len() != 18 {
		t.Errorf("Expected 18 questions, got %d", g.Len())
	}
	if len(g.Rules()) != 3 {
		t.Errorf("Expected 3 branching rules, got %d", len(g.Rules()))
	}
}

func TestDefault_AdvancedPath(t *testing.T) {
	g, err := Default()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	visited := walk(t, g, map[string]any{
		"early_experiences":        story,
		"education":                []any{"PhD"},
		"industry_experience":      []any{"Technology", "Finance", "Retail"},
		"market_size":              "Global",
		"international_experience": "yes",
		"work_style":               "Independent Worker",
		"investment_capacity":      "Bootstrap (< $5,000)",
		"revenue_expectations":     "Not Sure Yet",
		"risk_tolerance":           float64(4),
		"digital_literacy":         float64(5),
		"advanced_tech_skills":     []any{"DevOps"},
		"software_proficiency":     []any{"Development Tools"},
	})

	expected := []string{
		"early_experiences", "education", "industry_experience", "market_size",
		"international_experience", "work_style", "investment_capacity",
		"revenue_expectations", "risk_tolerance", "digital_literacy",
		"advanced_tech_skills", "software_proficiency",
	}
	if !slices.Equal(visited, expected) {
		t.Errorf("Unexpected path:\n got  %v\n want %v", visited, expected)
	}
}

func TestDefault_GuidedPath(t *testing.T) {
	g, err := Default()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	visited := walk(t, g, map[string]any{
		"early_experiences":     story,
		"education":             []any{"Bachelor's Degree"},
		"career_aspirations":    "Run my own studio",
		"industry_experience":   []any{"Retail"},
		"competition_awareness": float64(2),
		"market_size":           "Local/Regional",
		"work_style":            "Team Leader",
		"management_approach":   "Hands-on Leadership",
		"team_building":         []any{"Work with Contractors"},
		"investment_capacity":   "Seeking External Funding",
		"funding_timeline":      "3-6 months",
		"revenue_expectations":  "< $50,000",
		"risk_tolerance":        float64(2),
		"digital_literacy":      float64(2),
		"tech_skills":           []any{"Digital Marketing"},
		"software_proficiency":  []any{"Office Suite"},
	})

	expected := []string{
		"early_experiences", "education", "career_aspirations", "industry_experience",
		"competition_awareness", "market_size", "work_style", "management_approach",
		"team_building", "investment_capacity", "funding_timeline", "revenue_expectations",
		"risk_tolerance", "digital_literacy", "tech_skills", "software_proficiency",
	}
	if !slices.Equal(visited, expected) {
		t.Errorf("Unexpected path:\n got  %v\n want %v", visited, expected)
	}
}

// Every question, under a spread of answer sets, resolves to the end or to
// a known question that is not skipped.
func TestDefault_NoDanglingEdges(t *testing.T) {
	g, err := Default()
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	answerSets := []flow.Answers{{}}
	for _, q := range g.Questions() {
		switch q.Type {
		case flow.TypeChoice:
			for _, opt := range q.Options {
				answerSets = append(answerSets, flow.Answers{q.ID: opt})
			}
		case flow.TypeMultiple:
			answerSets = append(answerSets,
				flow.Answers{q.ID: q.Options[:1]},
				flow.Answers{q.ID: q.Options},
			)
		case flow.TypeScale:
			for n := flow.ScaleMin; n <= flow.ScaleMax; n++ {
				answerSets = append(answerSets, flow.Answers{q.ID: n})
			}
		case flow.TypeYesNo, flow.TypeLikeDislike:
			answerSets = append(answerSets, flow.Answers{q.ID: true}, flow.Answers{q.ID: false})
		}
	}

	for _, answers := range answerSets {
		for _, q := range g.Questions() {
			next, err := g.ResolveNext(q.ID, answers)
			if err != nil {
				t.Fatalf("ResolveNext(%s, %v) failed: %v", q.ID, answers, err)
			}
			if next == "" {
				continue
			}
			if !g.Has(next) {
				t.Fatalf("ResolveNext(%s) returned unknown %q", q.ID, next)
			}
			if skip, _ := g.Skipped(next, answers); skip {
				t.Errorf("ResolveNext(%s, %v) returned skipped %q", q.ID, answers, next)
			}
		}
	}
}

func TestLoad_EmptyPathUsesBuiltIn(t *testing.T) {
	g, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !g.Has("software_proficiency") {
		t.Error("Expected built-in graph")
	}
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

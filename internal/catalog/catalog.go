// Package catalog holds the built-in business-idea questionnaire and the
// named branch functions and predicates it refers to.
package catalog

import (
	_ "embed"
	"fmt"

	"questionnaire-service/internal/flow"
)

//go:embed questions.yaml
var definition []byte

const (
	degreeMasters = "Master's Degree"
	degreePhD     = "PhD"

	marketGlobal        = "Global"
	marketInternational = "International"

	workIndependent = "Independent Worker"

	investmentLarge    = "Large Investment (> $100,000)"
	investmentExternal = "Seeking External Funding"

	broadIndustryCount = 3
	techSavvyLevel     = 4
)

// Definition returns the raw YAML of the built-in questionnaire.
func Definition() []byte {
	out := make([]byte, len(definition))
	copy(out, definition)
	return out
}

// Registry returns the functions and predicates used by the built-in
// questionnaire. Custom definitions loaded from disk may use them too.
func Registry() *flow.Registry {
	reg := flow.NewRegistry()

	reg.RegisterFunc("education_track", func(_ any, answers flow.Answers) (string, error) {
		if hasAdvancedDegree(answers) {
			return "industry_experience", nil
		}
		return "career_aspirations", nil
	})
	reg.RegisterFunc("industry_breadth", func(_ any, answers flow.Answers) (string, error) {
		if len(answers.Strings("industry_experience")) >= broadIndustryCount {
			return "market_size", nil
		}
		return "competition_awareness", nil
	})
	reg.RegisterFunc("digital_track", func(_ any, answers flow.Answers) (string, error) {
		if isTechSavvy(answers) {
			return "advanced_tech_skills", nil
		}
		return "tech_skills", nil
	})

	reg.RegisterPredicate("advanced_degree", func(a flow.Answers) (bool, error) {
		return hasAdvancedDegree(a), nil
	})
	reg.RegisterPredicate("broad_industry_experience", func(a flow.Answers) (bool, error) {
		return len(a.Strings("industry_experience")) >= broadIndustryCount, nil
	})
	reg.RegisterPredicate("local_market", func(a flow.Answers) (bool, error) {
		return !targetsWorldMarket(a), nil
	})
	reg.RegisterPredicate("global_with_advanced_degree", func(a flow.Answers) (bool, error) {
		return targetsWorldMarket(a) && hasAdvancedDegree(a), nil
	})
	reg.RegisterPredicate("independent_worker", func(a flow.Answers) (bool, error) {
		return a.String("work_style") == workIndependent, nil
	})
	reg.RegisterPredicate("self_funded", func(a flow.Answers) (bool, error) {
		investment := a.String("investment_capacity")
		return investment != investmentLarge && investment != investmentExternal, nil
	})
	reg.RegisterPredicate("tech_savvy", func(a flow.Answers) (bool, error) {
		return isTechSavvy(a), nil
	})
	reg.RegisterPredicate("not_tech_savvy", func(a flow.Answers) (bool, error) {
		return !isTechSavvy(a), nil
	})

	return reg
}

// Default builds the built-in question graph.
func Default() (*flow.Graph, error) {
	g, err := flow.LoadGraph(definition, Registry())
	if err != nil {
		return nil, fmt.Errorf("built-in questionnaire is invalid: %w", err)
	}
	return g, nil
}

// Load builds the graph from path, or the built-in graph when path is empty.
func Load(path string) (*flow.Graph, error) {
	if path == "" {
		return Default()
	}
	return flow.LoadGraphFile(path, Registry())
}

func hasAdvancedDegree(a flow.Answers) bool {
	return a.Contains("education", degreePhD, degreeMasters)
}

func targetsWorldMarket(a flow.Answers) bool {
	size := a.String("market_size")
	return size == marketGlobal || size == marketInternational
}

func isTechSavvy(a flow.Answers) bool {
	level, ok := a.Int("digital_literacy")
	return ok && level >= techSavvyLevel
}

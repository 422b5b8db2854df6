package flow

import "time"

type QuestionType string

const (
	TypeText        QuestionType = "text"
	TypeChoice      QuestionType = "choice"
	TypeMultiple    QuestionType = "multiple"
	TypeScale       QuestionType = "scale"
	TypeYesNo       QuestionType = "yes-no"
	TypeLikeDislike QuestionType = "like-dislike"
)

const (
	ScaleMin = 1
	ScaleMax = 5
)

// Valid reports whether t is one of the known question types
func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeChoice, TypeMultiple, TypeScale, TypeYesNo, TypeLikeDislike:
		return true
	}
	return false
}

// HasOptions reports whether answers of this type are picked from Options
func (t QuestionType) HasOptions() bool {
	return t == TypeChoice || t == TypeMultiple
}

// Validation holds optional answer constraints. Lengths count runes for
// text answers and selections for multiple-choice answers.
type Validation struct {
	Required  bool   `yaml:"required" json:"required"`
	MinLength int    `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength int    `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Pattern   string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

type BranchKind string

const (
	BranchLiteral  BranchKind = "literal"
	BranchMapped   BranchKind = "mapped"
	BranchComputed BranchKind = "computed"
)

// Branch is the outgoing edge of a question. A nil *Branch is terminal.
//
// Literal branches always go to Target. Mapped branches look the answer up
// in Cases and fall back to Default. Computed branches call the registered
// function Func; Targets lists every id it may return.
type Branch struct {
	Kind    BranchKind        `yaml:"kind" json:"kind"`
	Target  string            `yaml:"target,omitempty" json:"target,omitempty"`
	Cases   map[string]string `yaml:"cases,omitempty" json:"cases,omitempty"`
	Default string            `yaml:"default,omitempty" json:"default,omitempty"`
	Func    string            `yaml:"func,omitempty" json:"func,omitempty"`
	Targets []string          `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// PossibleTargets returns every non-terminal id the branch can produce.
func (b *Branch) PossibleTargets() []string {
	if b == nil {
		return nil
	}
	var out []string
	switch b.Kind {
	case BranchLiteral:
		if b.Target != "" {
			out = append(out, b.Target)
		}
	case BranchMapped:
		for _, target := range b.Cases {
			if target != "" {
				out = append(out, target)
			}
		}
		if b.Default != "" {
			out = append(out, b.Default)
		}
	case BranchComputed:
		for _, target := range b.Targets {
			if target != "" {
				out = append(out, target)
			}
		}
	}
	return out
}

type Question struct {
	ID         string       `yaml:"id" json:"id"`
	Text       string       `yaml:"text" json:"text"`
	Section    string       `yaml:"section" json:"section"`
	Type       QuestionType `yaml:"type" json:"type"`
	Options    []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Next       *Branch      `yaml:"next,omitempty" json:"next,omitempty"`
	Validation *Validation  `yaml:"validation,omitempty" json:"validation,omitempty"`
	Checkpoint bool         `yaml:"checkpoint,omitempty" json:"checkpoint,omitempty"`
	SkipIf     string       `yaml:"skip_if,omitempty" json:"skip_if,omitempty"`
}

// Rule overrides a question's own branch: at QuestionID, when the named
// predicate holds for the full answer map, go to Next.
type Rule struct {
	QuestionID string `yaml:"question" json:"question_id"`
	When       string `yaml:"when" json:"when"`
	Next       string `yaml:"next" json:"next"`
}

type Progress struct {
	CurrentQuestionID string     `json:"currentQuestionId"`
	Answers           Answers    `json:"answers"`
	Completed         bool       `json:"completed"`
	LastCheckpoint    string     `json:"lastCheckpoint,omitempty"`
	LastSaved         *time.Time `json:"lastSaved,omitempty"`
}

// Clone returns a deep copy of p.
func (p *Progress) Clone() *Progress {
	if p == nil {
		return nil
	}
	out := *p
	out.Answers = p.Answers.Clone()
	if p.LastSaved != nil {
		saved := *p.LastSaved
		out.LastSaved = &saved
	}
	return &out
}

type Checkpoint struct {
	QuestionID string    `json:"questionId"`
	Timestamp  time.Time `json:"timestamp"`
	Answers    Answers   `json:"answers"`
	Progress   int       `json:"progress"`
}

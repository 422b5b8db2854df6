package models

import (
	"time"

	"questionnaire-service/internal/flow"
)

// SessionView is what the UI renders for a session: the question to show,
// the answers so far and how far along the user is.
type SessionView struct {
	SessionID       string                 `json:"session_id"`
	UserID          string                 `json:"user_id"`
	Status          string                 `json:"status"`
	CurrentQuestion *flow.Question         `json:"current_question,omitempty"`
	CurrentSection  string                 `json:"current_section,omitempty"`
	Answers         flow.Answers           `json:"answers"`
	Completed       bool                   `json:"completed"`
	Progress        int                    `json:"progress"`
	Sections        []flow.SectionProgress `json:"sections"`
	LastCheckpoint  string                 `json:"last_checkpoint,omitempty"`
	LastSaved       *time.Time             `json:"last_saved,omitempty"`
	Resumed         bool                   `json:"resumed,omitempty"`
	AutoSaveFailed  bool                   `json:"autosave_failed,omitempty"`
}

type CheckpointView struct {
	QuestionID string       `json:"question_id"`
	Section    string       `json:"section"`
	Timestamp  time.Time    `json:"timestamp"`
	Progress   int          `json:"progress"`
	Answers    flow.Answers `json:"answers"`
}

type CompletionResult struct {
	SessionID   string       `json:"session_id"`
	UserID      string       `json:"user_id"`
	Answers     flow.Answers `json:"answers"`
	CompletedAt time.Time    `json:"completed_at"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     any    `json:"answer"`
}

type ResolveRequest struct {
	QuestionID string       `json:"question_id" binding:"required"`
	Answers    flow.Answers `json:"answers"`
}

type ResolveResponse struct {
	QuestionID     string         `json:"question_id"`
	NextQuestionID string         `json:"next_question_id,omitempty"`
	NextQuestion   *flow.Question `json:"next_question,omitempty"`
	Completed      bool           `json:"completed"`
}

type ProgressRequest struct {
	Answers flow.Answers `json:"answers"`
}

type ProgressResponse struct {
	Progress       int                    `json:"progress"`
	Sections       []flow.SectionProgress `json:"sections"`
	LastCheckpoint string                 `json:"last_checkpoint,omitempty"`
}

package models

import "time"

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusFinalized = "finalized"
)

// QuestionnaireSession is the session record kept next to the engine's
// progress and checkpoint entries.
type QuestionnaireSession struct {
	ID          string     `bson:"_id,omitempty" json:"id"`
	UserID      string     `bson:"user_id" json:"user_id"`
	Status      string     `bson:"status" json:"status"`
	StartedAt   time.Time  `bson:"started_at" json:"started_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

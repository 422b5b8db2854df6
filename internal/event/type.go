package event

const (
	EventTypeSessionStarted     = "questionnaire.session.started"
	EventTypeAnswerSubmitted    = "questionnaire.answer.submitted"
	EventTypeCheckpointCreated  = "questionnaire.checkpoint.created"
	EventTypeAutoSaveFailed     = "questionnaire.autosave.failed"
	EventTypeSessionRestarted   = "questionnaire.session.restarted"
	EventTypeCheckpointRestored = "questionnaire.checkpoint.restored"
	EventTypeCompleted          = "questionnaire.completed"
	EventTypeFlowError          = "questionnaire.flow.error"
)

type QuestionnaireEvent struct {
	EventType  string         `json:"eventType"`
	SessionID  string         `json:"sessionId"`
	UserID     string         `json:"userId"`
	QuestionID string         `json:"questionId,omitempty"`
	Progress   int            `json:"progress"`
	Timestamp  int64          `json:"timestamp"`
	Answers    map[string]any `json:"answers,omitempty"`
	Error      string         `json:"error,omitempty"`
}

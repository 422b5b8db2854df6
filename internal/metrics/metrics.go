package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// status: success/failure
	AutoSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_autosaves_total",
			Help: "Total number of auto-save writes attempted",
		},
		[]string{"status"},
	)

	CheckpointsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questionnaire_checkpoints_created_total",
			Help: "Total number of checkpoints recorded",
		},
	)

	// kind: not_found/branching
	ResolutionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_resolution_errors_total",
			Help: "Total number of failed next-question resolutions",
		},
		[]string{"kind"},
	)

	AnswersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_answers_submitted_total",
			Help: "Total number of answers submitted",
		},
		[]string{"status"},
	)

	SessionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "questionnaire_sessions_started_total",
			Help: "Total number of questionnaire sessions started or resumed",
		},
		[]string{"mode"}, // new/resumed
	)

	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questionnaire_sessions_completed_total",
			Help: "Total number of finalized questionnaires",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "questionnaire_active_sessions_current",
			Help: "Current number of sessions held in memory",
		},
	)
)

func Status(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

package handlers

import (
	"errors"
	"log"
	"net/http"

	"questionnaire-service/internal/flow"
	"questionnaire-service/internal/service"

	"github.com/gin-gonic/gin"
)

const restartMessage = "unable to continue; please restart the questionnaire"

func respondError(c *gin.Context, err error) {
	var (
		nf *flow.NotFoundError
		be *flow.BranchingError
		ve *flow.ValidationError
	)
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       ve.Reason,
			"question_id": ve.QuestionID,
		})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{
			"error":       "Question not found",
			"question_id": nf.QuestionID,
		})
	case errors.As(err, &be):
		log.Printf("Questionnaire flow error: %v", err)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": restartMessage})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, service.ErrNoProgress):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Questionnaire request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

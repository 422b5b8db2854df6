package handlers

import (
	"net/http"

	"questionnaire-service/internal/models"
	"questionnaire-service/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	Service *service.SessionService
}

func NewSessionHandler(s *service.SessionService) *SessionHandler {
	return &SessionHandler{Service: s}
}

func (h *SessionHandler) RegisterRoutes(r gin.IRouter) {
	protected := r.Group("/protected/questionnaire/session")
	protected.Use(RequireUser())
	{
		protected.POST("", h.StartSession)
		protected.GET("/:id", h.GetSession)
		protected.POST("/:id/answer", h.SubmitAnswer)
		protected.POST("/:id/autosave", h.AutoSave)
		protected.GET("/:id/checkpoints", h.ListCheckpoints)
		protected.POST("/:id/checkpoints/:questionId/restore", h.RestoreCheckpoint)
		protected.POST("/:id/restart", h.Restart)
		protected.POST("/:id/finalize", h.Finalize)
	}
}

// RequireUser rejects requests without the X-User-ID header set by the
// gateway's auth middleware.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User ID is required",
			})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

// StartSession creates a questionnaire session or resumes the open one
func (h *SessionHandler) StartSession(c *gin.Context) {
	view, err := h.Service.StartSession(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if view.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, view)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.Service.Session(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	view, err := h.Service.SubmitAnswer(c.Request.Context(), c.GetString("userID"), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AutoSave is called by the client on its auto-save timer. Save failures
// are reported in the body, never as an error status.
func (h *SessionHandler) AutoSave(c *gin.Context) {
	view, err := h.Service.AutoSave(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"last_saved":      view.LastSaved,
		"autosave_failed": view.AutoSaveFailed,
		"progress":        view.Progress,
	})
}

func (h *SessionHandler) ListCheckpoints(c *gin.Context) {
	cps, err := h.Service.Checkpoints(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkpoints": cps,
		"total":       len(cps),
	})
}

func (h *SessionHandler) RestoreCheckpoint(c *gin.Context) {
	view, err := h.Service.RestoreCheckpoint(c.Request.Context(), c.GetString("userID"), c.Param("id"), c.Param("questionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Restart(c *gin.Context) {
	view, err := h.Service.Restart(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *SessionHandler) Finalize(c *gin.Context) {
	result, err := h.Service.Finalize(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"message": "Questionnaire submitted successfully",
	})
}

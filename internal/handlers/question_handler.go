package handlers

import (
	"net/http"

	"questionnaire-service/internal/models"
	"questionnaire-service/internal/service"

	"github.com/gin-gonic/gin"
)

// QuestionHandler serves the stateless questionnaire operations: the graph
// itself, next-question resolution and progress over client-held answers.
type QuestionHandler struct {
	Service *service.SessionService
}

func NewQuestionHandler(s *service.SessionService) *QuestionHandler {
	return &QuestionHandler{Service: s}
}

func (h *QuestionHandler) RegisterRoutes(r gin.IRouter) {
	public := r.Group("/public/questionnaire")
	{
		public.GET("/questions", h.ListQuestions)
		public.POST("/resolve", h.ResolveNext)
		public.POST("/progress", h.Progress)
	}
}

func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	g := h.Service.Graph()
	c.JSON(http.StatusOK, gin.H{
		"start":     g.Start(),
		"questions": g.Questions(),
		"total":     g.Len(),
	})
}

func (h *QuestionHandler) ResolveNext(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	resp, err := h.Service.Resolve(req.QuestionID, req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *QuestionHandler) Progress(c *gin.Context) {
	var req models.ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	resp, err := h.Service.Progress(req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

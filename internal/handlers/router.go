package handlers

import (
	"fmt"
	"net/http"
	"time"

	"questionnaire-service/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultOrigins = []string{"http://localhost:3000"}

func NewRouter(svc *service.SessionService, allowOrigins []string) *gin.Engine {
	if len(allowOrigins) == 0 {
		allowOrigins = defaultOrigins
	}
	r := gin.New()
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[GIN] %s | %3d | %13v | %15s | %-7s %s | user=%s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.StatusCode,
			param.Latency,
			param.ClientIP,
			param.Method,
			param.Path,
			param.Request.Header.Get("X-User-ID"),
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "X-User-ID", "accept", "origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"questions": svc.Graph().Len(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	NewQuestionHandler(svc).RegisterRoutes(r)
	NewSessionHandler(svc).RegisterRoutes(r)
	return r
}

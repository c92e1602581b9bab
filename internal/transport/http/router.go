package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"intelliquiz-engine/internal/platform/logger"
)

// AdminRole guards the administrative routes when authentication is enabled.
const AdminRole = "ROLE_ADMIN"

// NewRouter wires every route. A nil auth leaves the API unauthenticated and the admin
// routes open, which is what the in-memory demo mode uses.
func NewRouter(h *Handler, stream *StreamHandler, auth *JWTAuth, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/ws/leaderboard", stream.ServeLeaderboard)

	api := r.Group("/")
	admin := r.Group("/admin")
	if auth != nil {
		api.Use(auth.Principal())
		admin.Use(auth.Principal(), RequireRole(AdminRole))
	}

	api.POST("/quiz/submit", h.SubmitQuiz)
	api.GET("/quiz/attempts/:userId", h.ListAttempts)
	api.GET("/analytics/student/:userId", h.StudentAnalytics)
	api.GET("/leaderboard", h.Leaderboard)
	admin.DELETE("/users/:userId/attempts", h.PurgeAttempts)
	return r
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "latency", time.Since(start))
	}
}

package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"intelliquiz-engine/internal/app"
	"intelliquiz-engine/internal/domain"
	"intelliquiz-engine/internal/platform/logger"
)

// Handler exposes the engine operations as REST endpoints.
type Handler struct {
	submissions  *app.SubmissionService
	analytics    *app.AnalyticsService
	ranker       *app.LeaderboardRanker
	defaultLimit int
	log          *logger.Logger
}

func NewHandler(submissions *app.SubmissionService, analytics *app.AnalyticsService, ranker *app.LeaderboardRanker, defaultLimit int, log *logger.Logger) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Handler{
		submissions:  submissions,
		analytics:    analytics,
		ranker:       ranker,
		defaultLimit: defaultLimit,
		log:          log.With("component", "http"),
	}
}

type submitRequest struct {
	UserID     int64           `json:"userId"`
	Topic      string          `json:"topic"`
	Difficulty string          `json:"difficulty"`
	Answers    []domain.Answer `json:"answers"`
	TimeTaken  int             `json:"timeTaken"`
}

// SubmitQuiz handles POST /quiz/submit. A token principal wins over the body userId.
func (h *Handler) SubmitQuiz(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, fmt.Errorf("%w: malformed request body: %v", domain.ErrInvalidInput, err))
		return
	}

	res, err := h.submissions.Submit(c.Request.Context(), domain.Submission{
		Identity:         domain.Identity{Principal: principalFrom(c), UserID: req.UserID},
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
		Answers:          req.Answers,
		TimeTakenSeconds: req.TimeTaken,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListAttempts handles GET /quiz/attempts/:userId?topic=.
func (h *Handler) ListAttempts(c *gin.Context) {
	userID, err := pathUserID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	attempts, err := h.analytics.ListAttempts(c.Request.Context(), userID, strings.TrimSpace(c.Query("topic")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempts)
}

// PurgeAttempts handles DELETE /admin/users/:userId/attempts.
func (h *Handler) PurgeAttempts(c *gin.Context) {
	userID, err := pathUserID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	n, err := h.analytics.PurgeAttempts(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "deleted": n})
}

// StudentAnalytics handles GET /analytics/student/:userId.
func (h *Handler) StudentAnalytics(c *gin.Context) {
	userID, err := pathUserID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.analytics.StudentAnalytics(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Leaderboard handles GET /leaderboard?limit=&role=.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, fmt.Errorf("%w: limit must be an integer", domain.ErrInvalidInput))
			return
		}
		limit = n
	}
	entries, err := h.ranker.TopUsers(c.Request.Context(), limit, strings.TrimSpace(c.Query("role")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func pathUserID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %q", domain.ErrInvalidInput, c.Param("userId"))
	}
	return id, nil
}

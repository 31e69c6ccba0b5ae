package airuns

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"goalsectors-backend/internal/shared/server/middleware"
	"goalsectors-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/feedback", h.feedback)
	rg.GET("/ops/runs", h.listRuns)
}

type feedbackRequest struct {
	UserID  string `json:"userId"`
	RunID   string `json:"runId"`
	TraceID string `json:"traceId"`
	Score   *int   `json:"score"`
	Reason  string `json:"reason"`
}

func (h *Handler) feedback(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}

	var issues []map[string]string
	if strings.TrimSpace(req.UserID) == "" {
		issues = append(issues, map[string]string{"field": "userId", "issue": "required"})
	}
	if strings.TrimSpace(req.RunID) == "" {
		issues = append(issues, map[string]string{"field": "runId", "issue": "required"})
	} else if _, err := uuid.Parse(req.RunID); err != nil {
		issues = append(issues, map[string]string{"field": "runId", "issue": "invalid"})
	}
	if req.Score == nil || (*req.Score != 0 && *req.Score != 1) {
		issues = append(issues, map[string]string{"field": "score", "issue": "must be 0 or 1"})
	}
	if len(issues) > 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid feedback", issues)
		return
	}
	middleware.SetUserID(c, req.UserID)

	_, err := h.Svc.SubmitFeedback(c.Request.Context(), FeedbackInput{
		UserID:  strings.TrimSpace(req.UserID),
		RunID:   strings.TrimSpace(req.RunID),
		TraceID: req.TraceID,
		Score:   *req.Score,
		Reason:  req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "run not found", nil)
		case errors.Is(err, ErrInvalidFeedback):
			respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid feedback", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to record feedback", nil)
		}
		return
	}
	respond.Success(c)
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing userId", []map[string]string{
			{"field": "userId", "issue": "required"},
		})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid limit", []map[string]string{
				{"field": "limit", "issue": "must be between 1 and 200"},
			})
			return
		}
		limit = parsed
	}
	middleware.SetUserID(c, userID)

	overview, err := h.Svc.Overview(c.Request.Context(), userID, limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}
	respond.OK(c, overview)
}

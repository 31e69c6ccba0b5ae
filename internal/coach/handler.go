package coach

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"goalsectors-backend/internal/planner"
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
	rg.POST("/coach-turn", h.turn)
}

type turnRequest struct {
	UserID         string    `json:"userId"`
	Message        string    `json:"message"`
	Mode           string    `json:"mode"`
	EnabledSectors *[]string `json:"enabledSectors"`
	PromptVersion  string    `json:"promptVersion"`
}

func (h *Handler) turn(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}

	var issues []map[string]string
	if strings.TrimSpace(req.UserID) == "" {
		issues = append(issues, map[string]string{"field": "userId", "issue": "required"})
	}
	if strings.TrimSpace(req.Message) == "" {
		issues = append(issues, map[string]string{"field": "message", "issue": "required"})
	}
	var sectors *[]planner.Sector
	if req.EnabledSectors != nil {
		parsed, err := planner.ParseSectors(*req.EnabledSectors)
		if err != nil {
			issues = append(issues, map[string]string{"field": "enabledSectors", "issue": err.Error()})
		} else {
			sectors = &parsed
		}
	}
	if len(issues) > 0 {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid coach turn", issues)
		return
	}
	middleware.SetUserID(c, req.UserID)

	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	result, err := h.Svc.Turn(ctx, TurnRequest{
		UserID:         req.UserID,
		Message:        req.Message,
		Mode:           req.Mode,
		EnabledSectors: sectors,
		PromptVersion:  req.PromptVersion,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			respond.Error(c, http.StatusBadRequest, "invalid_request", strings.TrimPrefix(err.Error(), ErrInvalidRequest.Error()+": "), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process coach turn", nil)
		return
	}

	c.Set("runId", result.RunID)
	c.Set("actionsApplied", result.ActionsApplied)
	if result.TraceID != "" {
		c.Set("traceId", result.TraceID)
	}
	respond.OK(c, result)
}

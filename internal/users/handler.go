package users

import (
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
	rg.GET("/sectors", h.getSectors)
	rg.PUT("/sectors", h.putSectors)
}

type sectorsRequest struct {
	UserID         string   `json:"userId"`
	EnabledSectors []string `json:"enabledSectors"`
}

type sectorsResponse struct {
	UserID         string           `json:"userId"`
	EnabledSectors []planner.Sector `json:"enabledSectors"`
}

func (h *Handler) getSectors(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		userID = middleware.UserIDFromContext(c)
	}
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing userId", []map[string]string{
			{"field": "userId", "issue": "required"},
		})
		return
	}
	middleware.SetUserID(c, userID)

	sectors, err := h.Svc.EnabledSectors(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load sectors", nil)
		return
	}
	respond.OK(c, sectorsResponse{UserID: userID, EnabledSectors: sectors})
}

func (h *Handler) putSectors(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	var req sectorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing userId", []map[string]string{
			{"field": "userId", "issue": "required"},
		})
		return
	}
	if req.EnabledSectors == nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing enabledSectors", []map[string]string{
			{"field": "enabledSectors", "issue": "required"},
		})
		return
	}
	sectors, err := planner.ParseSectors(req.EnabledSectors)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", err.Error(), []map[string]string{
			{"field": "enabledSectors", "issue": "invalid"},
		})
		return
	}
	middleware.SetUserID(c, userID)

	updated, err := h.Svc.SetEnabledSectors(c.Request.Context(), userID, sectors)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update sectors", nil)
		return
	}
	respond.OK(c, sectorsResponse{UserID: userID, EnabledSectors: updated})
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/UnknownOlympus/trafficmodeler/internal/planner"
	"github.com/UnknownOlympus/trafficmodeler/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPlansLimit = 20
	maxPlansLimit     = 100
)

// Sessions manages planning sessions.
type Sessions interface {
	Open(ctx context.Context) (uuid.UUID, *planner.Orchestrator)
	Get(id uuid.UUID) (*planner.Orchestrator, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// History lists recorded plans.
type History interface {
	RecentPlans(ctx context.Context, limit int) ([]models.PlanRecord, error)
}

// Handler serves the planning API.
type Handler struct {
	sessions Sessions
	history  History
	log      *slog.Logger
}

// PlanRequest is the body of a planning request.
type PlanRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

// New creates a Handler. history may be nil when plan history is disabled.
func New(sessions Sessions, history History, log *slog.Logger) *Handler {
	return &Handler{sessions: sessions, history: history, log: log}
}

// RegisterRoutes registers the API routes on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1")
	{
		api.POST("/sessions", h.OpenSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.CloseSession)
		api.POST("/sessions/:id/routes", h.PlanRoute)
		api.GET("/sessions/:id/map", h.GetMap)
		api.GET("/plans", h.ListPlans)
	}
}

// OpenSession creates a planning session.
func (h *Handler) OpenSession(c *gin.Context) {
	id, _ := h.sessions.Open(c.Request.Context())
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// GetSession returns the state, active plan and markers of a session.
func (h *Handler) GetSession(c *gin.Context) {
	orch, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, orch.Snapshot())
}

// CloseSession tears a session down.
func (h *Handler) CloseSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, service.ErrSessionNotFound)
		return
	}

	if err = h.sessions.Close(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// PlanRoute runs a planning request and returns the displayed plan.
func (h *Handler) PlanRoute(c *gin.Context) {
	orch, ok := h.session(c)
	if !ok {
		return
	}

	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	plan, err := orch.Submit(c.Request.Context(), req.Origin, req.Destination)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}

// GetMap renders the active route and obstacle markers of a session as GeoJSON.
func (h *Handler) GetMap(c *gin.Context) {
	orch, ok := h.session(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, MapFeatures(orch.Snapshot()))
}

// ListPlans returns the most recent plans, newest first.
func (h *Handler) ListPlans(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "plan history is disabled"})
		return
	}

	limit := defaultPlansLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPlansLimit)
	}

	plans, err := h.history.RecentPlans(c.Request.Context(), limit)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Failed to load plan history", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load plan history", Retryable: true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *Handler) session(c *gin.Context) (*planner.Orchestrator, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.respondError(c, service.ErrSessionNotFound)
		return nil, false
	}

	orch, err := h.sessions.Get(id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	return orch, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, planner.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, planner.ErrNoCoordinates), errors.Is(err, planner.ErrNoRoute):
		c.JSON(http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, planner.ErrSuperseded):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, planner.ErrTransport):
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error(), Retryable: true})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, planner.ErrClosed):
		c.JSON(http.StatusNotFound, errorResponse{Error: service.ErrSessionNotFound.Error()})
	default:
		h.log.ErrorContext(c.Request.Context(), "Unhandled API error", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

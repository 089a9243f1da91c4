// Package plan exposes the planner over HTTP with gin.
package plan

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/hems/app"
	"github.com/kilianp07/hems/core/model"
	"github.com/kilianp07/hems/infra/metrics"
	"github.com/kilianp07/hems/internal/exitcode"
	"github.com/kilianp07/hems/pkg/export"
)

// Planner runs one planning document.
type Planner interface {
	Plan(ctx context.Context, doc export.Document) (app.Run, error)
}

// History lists stored runs.
type History interface {
	Runs(limit int) ([]metrics.RunSummary, error)
	Schedule(runID string) ([]model.ResultSlot, error)
}

// ErrorDetail is the body of every error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail.
type ErrorResponse struct {
	Error  ErrorDetail   `json:"error"`
	RunID  string        `json:"run_id,omitempty"`
	Result *model.Result `json:"result,omitempty"`
}

// PlanResponse is returned by POST /plan.
type PlanResponse struct {
	RunID   string       `json:"run_id"`
	Result  model.Result `json:"result"`
	Warning string       `json:"warning,omitempty"`
}

// Handler serves the planning routes.
type Handler struct {
	planner      Planner
	history      History
	maxBodyBytes int64
}

// NewHandler returns a Handler. history may be nil, in which case the run
// routes answer 404.
func NewHandler(p Planner, history History, maxBodyBytes int64) *Handler {
	return &Handler{planner: p, history: history, maxBodyBytes: maxBodyBytes}
}

// Register mounts the routes on g.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.POST("/plan", h.Plan)
	g.GET("/runs", h.ListRuns)
	g.GET("/runs/:id/schedule", h.GetSchedule)
}

// Plan handles POST /plan. The body is a planning document in JSON.
func (h *Handler) Plan(c *gin.Context) {
	body := c.Request.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxBodyBytes)
	}
	doc, err := export.DecodeDocument(body, export.FormatJSON)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()}})
		return
	}

	run, err := h.planner.Plan(c.Request.Context(), doc)
	if err == nil {
		c.JSON(http.StatusOK, PlanResponse{RunID: run.ID, Result: run.Result})
		return
	}
	switch exitcode.GetCode(err) {
	case exitcode.Sink:
		c.JSON(http.StatusOK, PlanResponse{RunID: run.ID, Result: run.Result, Warning: err.Error()})
	case exitcode.Solve:
		res := run.Result
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:  ErrorDetail{Code: "NOT_SOLVED", Message: err.Error()},
			RunID:  run.ID,
			Result: &res,
		})
	case exitcode.Model:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_HORIZON", Message: err.Error()}, RunID: run.ID})
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_INPUT", Message: err.Error()}, RunID: run.ID})
	}
}

// ListRuns handles GET /runs?limit=N.
func (h *Handler) ListRuns(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "NO_HISTORY", Message: "no sqlite sink configured"}})
		return
	}
	limit := 20
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_LIMIT", Message: "limit must be a positive integer"}})
			return
		}
		limit = n
	}
	runs, err := h.history.Runs(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "HISTORY_ERROR", Message: err.Error()}})
		return
	}
	if runs == nil {
		runs = []metrics.RunSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetSchedule handles GET /runs/:id/schedule.
func (h *Handler) GetSchedule(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "NO_HISTORY", Message: "no sqlite sink configured"}})
		return
	}
	slots, err := h.history.Schedule(c.Param("id"))
	switch {
	case errors.Is(err, metrics.ErrRunNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrorDetail{Code: "RUN_NOT_FOUND", Message: err.Error()}})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "HISTORY_ERROR", Message: err.Error()}})
	default:
		if slots == nil {
			slots = []model.ResultSlot{}
		}
		c.JSON(http.StatusOK, gin.H{"run_id": c.Param("id"), "slots": slots})
	}
}

package engine

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	"tableflow/pkg/errors"
)

// Service is the engine surface exposed over HTTP.
type Service interface {
	EventProcessor
	ChangeStatus(ctx context.Context, tenantID, tableNumber, status, reason string) (*tables.Table, EventResult, error)
	ClearTimers(tenantID, tableNumber string) int
	PendingTimers(tenantID, tableNumber string) []TimerInfo
}

type TriggerRequest struct {
	ID           string             `json:"id"`
	TriggerEvent rules.TriggerEvent `json:"trigger_event" binding:"required"`
	TableNumber  string             `json:"table_number" binding:"required"`
	Context      map[string]any     `json:"context"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

type ChangeStatusResponse struct {
	Table  *tables.Table `json:"table"`
	Result *EventResult  `json:"result,omitempty"`
}

type Handler struct {
	service  Service
	activity tables.ActivityStore
	logger   logger.Logger
}

func NewHandler(service Service, activity tables.ActivityStore, log logger.Logger) *Handler {
	return &Handler{service: service, activity: activity, logger: log}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	tenant := router.Group("/api/v1/tenants/:tenant_id")
	{
		tenant.POST("/events", h.TriggerEvent)

		tbl := tenant.Group("/tables/:table_number")
		{
			tbl.POST("/status", h.ChangeStatus)
			tbl.GET("/timers", h.ListTimers)
			tbl.POST("/clear-timers", h.ClearTimers)
			tbl.GET("/alerts", h.ListAlerts)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// TriggerEvent godoc
// @Summary      Deliver a trigger event
// @Description  Runs the tenant's rules for the event synchronously and returns the execution report
// @Tags         engine
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string          true  "Tenant ID"
// @Param        event      body  TriggerRequest  true  "Trigger event"
// @Success      200  {object}  EventResult
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/events [post]
func (h *Handler) TriggerEvent(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	evt := Event{
		ID:          req.ID,
		TenantID:    c.Param("tenant_id"),
		Trigger:     req.TriggerEvent,
		TableNumber: req.TableNumber,
		Context:     req.Context,
		Source:      SourceAPI,
	}
	if err := evt.Validate(); err != nil {
		h.handleError(c, err)
		return
	}

	// Rules run to completion even if the caller goes away mid-event.
	result := h.service.ProcessEvent(context.WithoutCancel(c.Request.Context()), evt)
	c.JSON(http.StatusOK, result)
}

// ChangeStatus godoc
// @Summary      Change a table status manually
// @Description  Persists the status, broadcasts it and emits status_changed. Resetting to available cancels pending timers.
// @Tags         tables
// @Accept       json
// @Produce      json
// @Param        tenant_id     path  string               true  "Tenant ID"
// @Param        table_number  path  string               true  "Table number"
// @Param        request       body  ChangeStatusRequest  true  "New status"
// @Success      200  {object}  ChangeStatusResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/tables/{table_number}/status [post]
func (h *Handler) ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	table, result, err := h.service.ChangeStatus(context.WithoutCancel(c.Request.Context()), c.Param("tenant_id"), c.Param("table_number"), req.Status, req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := ChangeStatusResponse{Table: table}
	if result.EventID != "" {
		resp.Result = &result
	}
	c.JSON(http.StatusOK, resp)
}

// ListTimers godoc
// @Summary      List pending timers of a table
// @Tags         tables
// @Produce      json
// @Success      200  {array}  TimerInfo
// @Router       /tenants/{tenant_id}/tables/{table_number}/timers [get]
func (h *Handler) ListTimers(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.PendingTimers(c.Param("tenant_id"), c.Param("table_number")))
}

// ClearTimers godoc
// @Summary      Cancel pending timers of a table
// @Tags         tables
// @Produce      json
// @Router       /tenants/{tenant_id}/tables/{table_number}/clear-timers [post]
func (h *Handler) ClearTimers(c *gin.Context) {
	cleared := h.service.ClearTimers(c.Param("tenant_id"), c.Param("table_number"))
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

// ListAlerts godoc
// @Summary      List recent alerts of a table
// @Tags         tables
// @Produce      json
// @Param        limit  query  int  false  "Maximum number of alerts"
// @Success      200  {array}  tables.Alert
// @Router       /tenants/{tenant_id}/tables/{table_number}/alerts [get]
func (h *Handler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	alerts, err := h.activity.ListAlerts(c.Request.Context(), c.Param("tenant_id"), c.Param("table_number"), limit)
	if err != nil {
		h.handleError(c, errors.ErrInternal.WithCause(err))
		return
	}
	c.JSON(http.StatusOK, alerts)
}

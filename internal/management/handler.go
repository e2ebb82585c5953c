package management

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tableflow/internal/audit"
	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/internal/rules"
	"tableflow/pkg/errors"
)

const userHeader = "X-User-ID"

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts the admin surface. Extra middleware, such as the
// rate limiter, applies to admin routes only.
func (h *Handler) RegisterRoutes(router *gin.Engine, middleware ...gin.HandlerFunc) {
	tenant := router.Group("/api/v1/tenants/:tenant_id", middleware...)
	{
		r := tenant.Group("/rules")
		{
			r.GET("", h.ListRules)
			r.POST("", h.CreateRule)
			r.POST("/reorder", h.ReorderRules)
			r.POST("/defaults", h.SeedDefaults)
			r.GET("/:id", h.GetRule)
			r.PUT("/:id", h.UpdateRule)
			r.DELETE("/:id", h.DeleteRule)
			r.POST("/:id/toggle", h.ToggleRule)
			r.POST("/:id/test", h.TestRule)
			r.GET("/:id/versions", h.GetRuleVersions)
			r.GET("/:id/audit", h.GetRuleAuditLogs)
		}

		tenant.GET("/audit/logs", h.GetAuditLogs)
		tenant.GET("/executions", h.ListExecutions)
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
}

func requestContext(c *gin.Context) context.Context {
	return WithChangedBy(c.Request.Context(), c.GetHeader(userHeader), c.ClientIP())
}

// ListRules godoc
// @Summary      List tenant rules
// @Tags         rules
// @Produce      json
// @Param        tenant_id      path   string  true   "Tenant ID"
// @Param        trigger_event  query  string  false  "Filter by trigger event"
// @Param        active         query  bool    false  "Filter by active flag"
// @Success      200  {array}   rules.Rule
// @Failure      400  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules [get]
func (h *Handler) ListRules(c *gin.Context) {
	filter := rules.ListFilter{TriggerEvent: rules.TriggerEvent(c.Query("trigger_event"))}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			h.bindError(c, err)
			return
		}
		filter.IsActive = &active
	}

	list, err := h.Service.ListRules(c.Request.Context(), c.Param("tenant_id"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// CreateRule godoc
// @Summary      Create a rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string             true  "Tenant ID"
// @Param        rule       body  CreateRuleRequest  true  "Rule"
// @Success      201  {object}  rules.Rule
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      409  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules [post]
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	rule, err := h.Service.CreateRule(requestContext(c), c.Param("tenant_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// GetRule godoc
// @Summary      Get a rule
// @Tags         rules
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        id         path  string  true  "Rule ID"
// @Success      200  {object}  rules.Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id} [get]
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.Service.GetRule(c.Request.Context(), c.Param("tenant_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// UpdateRule godoc
// @Summary      Update a rule
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string             true  "Tenant ID"
// @Param        id         path  string             true  "Rule ID"
// @Param        rule       body  UpdateRuleRequest  true  "Changed fields"
// @Success      200  {object}  rules.Rule
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id} [put]
func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	rule, err := h.Service.UpdateRule(requestContext(c), c.Param("tenant_id"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary      Delete a rule
// @Tags         rules
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        id         path  string  true  "Rule ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id} [delete]
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.Service.DeleteRule(requestContext(c), c.Param("tenant_id"), c.Param("id")); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleRule godoc
// @Summary      Flip a rule's active flag
// @Tags         rules
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        id         path  string  true  "Rule ID"
// @Success      200  {object}  rules.Rule
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id}/toggle [post]
func (h *Handler) ToggleRule(c *gin.Context) {
	rule, err := h.Service.ToggleRule(requestContext(c), c.Param("tenant_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ReorderRules godoc
// @Summary      Set rule priorities
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string          true  "Tenant ID"
// @Param        order      body  ReorderRequest  true  "New priorities"
// @Success      200  {array}   rules.Rule
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/reorder [post]
func (h *Handler) ReorderRules(c *gin.Context) {
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	list, err := h.Service.ReorderRules(requestContext(c), c.Param("tenant_id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// TestRule godoc
// @Summary      Dry-run a rule
// @Description  Evaluates the rule against a stored table or a supplied context without executing actions
// @Tags         rules
// @Accept       json
// @Produce      json
// @Param        tenant_id  path  string           true  "Tenant ID"
// @Param        id         path  string           true  "Rule ID"
// @Param        test       body  TestRuleRequest  true  "Test input"
// @Success      200  {object}  TestRuleResult
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id}/test [post]
func (h *Handler) TestRule(c *gin.Context) {
	var req TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	result, err := h.Service.TestRule(c.Request.Context(), c.Param("tenant_id"), c.Param("id"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SeedDefaults godoc
// @Summary      Create the built-in rules for a tenant
// @Tags         rules
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Success      200  {object}  SeedResult
// @Router       /tenants/{tenant_id}/rules/defaults [post]
func (h *Handler) SeedDefaults(c *gin.Context) {
	result, err := h.Service.SeedDefaults(requestContext(c), c.Param("tenant_id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetRuleVersions godoc
// @Summary      Rule version history
// @Tags         rules
// @Produce      json
// @Param        tenant_id  path  string  true  "Tenant ID"
// @Param        id         path  string  true  "Rule ID"
// @Success      200  {array}   RuleVersion
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /tenants/{tenant_id}/rules/{id}/versions [get]
func (h *Handler) GetRuleVersions(c *gin.Context) {
	versions, err := h.Service.GetRuleVersions(c.Request.Context(), c.Param("tenant_id"), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

// GetRuleAuditLogs godoc
// @Summary      Audit log of one rule
// @Tags         audit
// @Produce      json
// @Param        tenant_id  path   string  true   "Tenant ID"
// @Param        id         path   string  true   "Rule ID"
// @Param        limit      query  int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200  {array}   AuditLog
// @Router       /tenants/{tenant_id}/rules/{id}/audit [get]
func (h *Handler) GetRuleAuditLogs(c *gin.Context) {
	id := c.Param("id")
	logs, err := h.Service.GetAuditLogs(c.Request.Context(), c.Param("tenant_id"), &id, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetAuditLogs godoc
// @Summary      Tenant rule audit log
// @Tags         audit
// @Produce      json
// @Param        tenant_id  path   string  true   "Tenant ID"
// @Param        rule_id    query  string  false  "Filter by rule ID"
// @Param        limit      query  int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200  {array}   AuditLog
// @Router       /tenants/{tenant_id}/audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	var ruleID *string
	if id := c.Query("rule_id"); id != "" {
		ruleID = &id
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), c.Param("tenant_id"), ruleID, parseLimit(c.Query("limit")))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

// ListExecutions godoc
// @Summary      Rule execution history
// @Tags         audit
// @Produce      json
// @Param        tenant_id      path   string  true   "Tenant ID"
// @Param        table_number   query  string  false  "Filter by table"
// @Param        trigger_event  query  string  false  "Filter by trigger event"
// @Param        outcome        query  string  false  "Filter by outcome"
// @Param        since          query  string  false  "RFC3339 lower bound"
// @Param        limit          query  int     false  "Page size" default(100)
// @Param        offset         query  int     false  "Page offset"
// @Success      200  {array}   audit.ExecutionLog
// @Router       /tenants/{tenant_id}/executions [get]
func (h *Handler) ListExecutions(c *gin.Context) {
	filter := audit.ListFilter{
		TableNumber: c.Query("table_number"),
		Trigger:     c.Query("trigger_event"),
		Outcome:     c.Query("outcome"),
		Limit:       parseLimit(c.Query("limit")),
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			h.bindError(c, errors.ErrValidation.WithDetail("message", "offset must be a non-negative integer"))
			return
		}
		filter.Offset = offset
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.bindError(c, err)
			return
		}
		filter.Since = since
	}

	logs, err := h.Service.ListExecutions(c.Request.Context(), c.Param("tenant_id"), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

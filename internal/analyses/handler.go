package analyses

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"competitor-knowledge/internal/pricehistory"
	"competitor-knowledge/internal/shared/server/middleware"
	"competitor-knowledge/internal/shared/server/respond"
	"competitor-knowledge/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc      *Service
	Cooldown time.Duration
	polls    *pollLimiter
}

// NewHandler constructs a Handler. cooldown is the default reanalysis window.
func NewHandler(svc *Service, cooldown time.Duration) *Handler {
	return &Handler{Svc: svc, Cooldown: cooldown, polls: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/products/:id/analyses", h.startAnalysis)
	rg.POST("/products/:id/analyses/sync", h.runSync)
	rg.POST("/products/:id/reanalyze", h.reanalyze)
	rg.GET("/products/:id/analyses", h.listAnalyses)
	rg.GET("/products/:id/price-history", h.priceHistory)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/progress", h.getProgress)
	rg.POST("/analyses/:id/retry", h.retry)
}

type reanalyzeRequest struct {
	Trigger         string `json:"trigger"`
	CooldownSeconds int    `json:"cooldownSeconds"`
}

func (h *Handler) startAnalysis(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, created, err := h.Svc.CreateAndRun(ctx, c.Param("id"), triggerFromQuery(c))
	if err != nil {
		h.startError(c, analysis, err)
		return
	}
	respond.Accepted(c, progressLocation(c, analysis.ID), gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
		"created":    created,
	})
}

func (h *Handler) runSync(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.RunSync(ctx, c.Param("id"), triggerFromQuery(c))
	if err != nil {
		if errors.Is(err, ErrInFlight) {
			respond.Error(c, http.StatusConflict, "in_progress", "analysis already in progress", gin.H{"analysisId": analysis.ID})
			return
		}
		h.startError(c, analysis, err)
		return
	}
	respond.JSON(c, http.StatusOK, analysisView(analysis))
}

func (h *Handler) reanalyze(c *gin.Context) {
	var req reanalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
	}
	if req.Trigger == "" {
		req.Trigger = TriggerProductUpdate
	}
	req.Trigger = NormalizeTrigger(req.Trigger)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	cooldown := h.Cooldown
	if req.CooldownSeconds > 0 {
		cooldown = time.Duration(req.CooldownSeconds) * time.Second
	}
	analysis, created, err := h.Svc.Reanalyze(ctx, c.Param("id"), req.Trigger, cooldown)
	if err != nil {
		if errors.Is(err, ErrCooldown) {
			respond.Error(c, http.StatusConflict, "cooldown", "analysis ran recently", gin.H{"analysisId": analysis.ID})
			return
		}
		h.startError(c, analysis, err)
		return
	}
	respond.Accepted(c, progressLocation(c, analysis.ID), gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
		"created":    created,
	})
}

func (h *Handler) startError(c *gin.Context, analysis Analysis, err error) {
	switch {
	case errors.Is(err, ErrEntityNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "product not found", nil)
	default:
		var up *UpstreamError
		if errors.As(err, &up) && analysis.ID != "" {
			respond.Error(c, http.StatusBadGateway, "enqueue_failed", "failed to schedule analysis", gin.H{"analysisId": analysis.ID})
			return
		}
		telemetry.Error("analysis.start.failed", map[string]any{
			"request_id": middleware.RequestIDFromContext(c),
			"entity_id":  c.Param("id"),
			"error":      sanitizeError(err),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
	}
}

func (h *Handler) retry(c *gin.Context) {
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	analysis, err := h.Svc.Retry(ctx, c.Param("id"))
	if err != nil {
		var up *UpstreamError
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrNotFailed):
			respond.Error(c, http.StatusConflict, "not_failed", ErrNotFailed.Error(), nil)
		case errors.As(err, &up) && analysis.ID != "":
			respond.Error(c, http.StatusBadGateway, "enqueue_failed", "failed to schedule analysis", gin.H{"analysisId": analysis.ID})
		default:
			telemetry.Error("analysis.retry.failed", map[string]any{
				"request_id":  middleware.RequestIDFromContext(c),
				"analysis_id": c.Param("id"),
				"error":       sanitizeError(err),
			})
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry analysis", nil)
		}
		return
	}
	respond.Accepted(c, progressLocation(c, analysis.ID), gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, analysisView(analysis))
}

func (h *Handler) getProgress(c *gin.Context) {
	analysisID := c.Param("id")
	if ok, wait := h.polls.Allow(c.ClientIP(), analysisID); !ok {
		respond.TooManyRequests(c, wait, "polling too frequently", nil)
		return
	}
	progress, err := h.Svc.GetProgress(c.Request.Context(), analysisID)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, progress)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	items, err := h.Svc.ListByEntity(c.Request.Context(), c.Param("id"), queryLimit(c, 20))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	resp := make([]gin.H, 0, len(items))
	for _, a := range items {
		item := gin.H{
			"analysisId":    a.ID,
			"status":        a.Status,
			"triggerSource": a.TriggerSource,
			"createdAt":     a.CreatedAt,
		}
		if a.CompletedAt != nil {
			item["completedAt"] = a.CompletedAt
		}
		if a.ErrorMessage != nil {
			item["error"] = *a.ErrorMessage
		}
		resp = append(resp, item)
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) priceHistory(c *gin.Context) {
	records, err := h.Svc.PriceHistory(c.Request.Context(), c.Param("id"), queryLimit(c, 0))
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load price history", nil)
		return
	}
	if records == nil {
		records = []pricehistory.Record{}
	}
	respond.JSON(c, http.StatusOK, records)
}

func (h *Handler) lookupError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		return
	}
	respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
}

func analysisView(a Analysis) gin.H {
	resp := gin.H{
		"id":             a.ID,
		"targetEntityId": a.TargetEntityID,
		"status":         a.Status,
		"currentStep":    a.CurrentStep,
		"progress":       ProgressOf(a),
		"triggerSource":  a.TriggerSource,
		"createdAt":      a.CreatedAt,
	}
	if a.Status == StatusCompleted && a.FinalData != nil {
		resp["result"] = a.FinalData
	}
	if a.Status == StatusFailed {
		resp["errorCode"] = a.ErrorCode
		if a.ErrorMessage != nil {
			resp["error"] = *a.ErrorMessage
		}
	}
	if a.CompletedAt != nil {
		resp["completedAt"] = a.CompletedAt
	}
	return resp
}

func triggerFromQuery(c *gin.Context) string {
	return NormalizeTrigger(c.Query("trigger"))
}

func queryLimit(c *gin.Context, def int) int {
	limit := def
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

// progressLocation builds the progress URL under the same API prefix as the current route.
func progressLocation(c *gin.Context, analysisID string) string {
	prefix := ""
	if route := c.FullPath(); route != "" {
		if i := strings.Index(route, "/products/"); i >= 0 {
			prefix = route[:i]
		} else if i := strings.Index(route, "/analyses/"); i >= 0 {
			prefix = route[:i]
		}
	}
	return prefix + "/analyses/" + analysisID + "/progress"
}

package analyses

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"venture-backend/internal/shared/server/middleware"
	"venture-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc     *Service
	limiter *pollLimiter
}

// NewHandler constructs a Handler with the default poll limiter.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc, limiter: newPollLimiter(pollLimitWindow, nil)}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
}

func (h *Handler) createAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var input IdeaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "request body must be a valid idea", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Create(ctx, userID, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", "idea failed validation", validationDetails(err))
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create analysis", nil)
		}
		return
	}

	c.Set("analysisId", analysis.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"analysisId": analysis.ID,
		"status":     analysis.Status,
	})
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	c.Set("analysisId", analysisID)

	if !h.limiter.Allow(userID, analysisID) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "poll at most once per second per analysis", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", "analysis belongs to another user", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"id":        analysis.ID,
		"status":    analysis.Status,
		"idea":      analysis.Input,
		"sections":  orderedSections{order: h.Svc.Registry.SectionIDs(), sections: analysis.Sections},
		"createdAt": analysis.CreatedAt,
		"updatedAt": analysis.UpdatedAt,
	})
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, gin.H{
			"analysisId": a.ID,
			"title":      a.Input.Title,
			"status":     a.Status,
			"createdAt":  a.CreatedAt,
			"updatedAt":  a.UpdatedAt,
		})
	}

	respond.JSON(c, http.StatusOK, resp)
}

// orderedSections renders the sections object in registry order rather than
// Go's alphabetical map order, so the report reads top to bottom.
type orderedSections struct {
	order    []string
	sections map[string]SectionResult
}

func (o orderedSections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	for _, id := range o.order {
		result, ok := o.sections[id]
		if !ok {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
		written++
	}
	for id, result := range o.sections {
		if containsID(o.order, id) {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(id)
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
		written++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func validationDetails(err error) []map[string]string {
	return []map[string]string{
		{"field": "idea", "issue": sanitizeError(err)},
	}
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zulandar/sessionlens/internal/inspector"
	"github.com/zulandar/sessionlens/internal/refresh"
	"github.com/zulandar/sessionlens/internal/store"
)

type handlers struct {
	svc Inspector
	hub *refresh.Hub
	log *slog.Logger
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/sessions", h.listSessions)
	api.GET("/sessions/:id", h.getSession)
	api.GET("/sessions/:id/completeness", h.getCompleteness)
	api.PATCH("/sessions/:id", h.saveEdits)
	api.DELETE("/sessions/:id/override", h.clearOverride)
	api.GET("/overrides", h.listOverrides)
	api.GET("/events", handleSSE(h.hub))
}

func (h *handlers) listSessions(c *gin.Context) {
	f := store.SessionFilter{
		Status:           c.Query("status"),
		ValidationStatus: c.Query("validation"),
		Mode:             c.Query("mode"),
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
			return
		}
		f.Since = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	list, err := h.svc.ListSessions(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

func (h *handlers) getSession(c *gin.Context) {
	d, err := h.svc.GetSessionDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *handlers) getCompleteness(c *gin.Context) {
	st, err := h.svc.GetCompleteness(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handlers) saveEdits(c *gin.Context) {
	var e inspector.Edits
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid edit body: " + err.Error()})
		return
	}
	id := c.Param("id")
	res, err := h.svc.SaveEdits(c.Request.Context(), id, e)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.publish(refresh.EventOverrideChanged, id)

	status := http.StatusOK
	if res.Outcome == inspector.OutcomeLocallyCached {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

func (h *handlers) clearOverride(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.ClearLocalOverride(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.publish(refresh.EventOverrideChanged, id)
	c.Status(http.StatusNoContent)
}

func (h *handlers) listOverrides(c *gin.Context) {
	patches, err := h.svc.ListOverrides()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": patches, "count": len(patches)})
}

func (h *handlers) publish(eventType, sessionID string) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(refresh.Event{Type: eventType, SessionIDs: []string{sessionID}})
}

// fail maps service errors to HTTP status codes.
func (h *handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, inspector.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, inspector.ErrUnavailable),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Error("api: request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

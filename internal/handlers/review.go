package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillscope-backend/internal/requestdata"
	"github.com/yungbote/skillscope-backend/internal/services"
)

type ReviewHandler struct {
	svc services.ReviewService
}

func NewReviewHandler(svc services.ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

// GET /api/notifications?unread=true
func (h *ReviewHandler) ListNotifications(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	unreadOnly := c.Query("unread") == "true"

	notifications, err := h.svc.ListNotifications(c.Request.Context(), rd.UserID, unreadOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// POST /api/notifications/:id/read
func (h *ReviewHandler) MarkNotificationRead(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.svc.MarkNotificationRead(c.Request.Context(), rd.UserID, notificationID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /api/safety-incidents?unresolved=true
func (h *ReviewHandler) ListIncidents(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	unresolvedOnly := c.Query("unresolved") == "true"

	incidents, err := h.svc.ListIncidents(c.Request.Context(), rd.UserID, unresolvedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents})
}

// POST /api/safety-incidents/:id/resolve
func (h *ReviewHandler) ResolveIncident(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return
	}

	if err := h.svc.ResolveIncident(c.Request.Context(), rd.UserID, incidentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

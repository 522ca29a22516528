package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/requestdata"
	"github.com/yungbote/skillscope-backend/internal/services"
)

type SelfEvalHandler struct {
	svc services.SelfEvaluationService
}

func NewSelfEvalHandler(svc services.SelfEvaluationService) *SelfEvalHandler {
	return &SelfEvalHandler{svc: svc}
}

// POST /api/skills/:id/self-evaluations
func (h *SelfEvalHandler) StartSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	skillID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skill id"})
		return
	}

	session, err := h.svc.StartSession(c.Request.Context(), rd.UserID, skillID)
	if err != nil {
		if errors.Is(err, repos.ErrSkillNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

// GET /api/self-evaluations/:id
func (h *SelfEvalHandler) GetSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	session, err := h.svc.GetSession(c.Request.Context(), sessionID, rd.UserID)
	if err != nil {
		if errors.Is(err, repos.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}

// POST /api/self-evaluations/:id/turns
func (h *SelfEvalHandler) SubmitTurn(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.svc.ProcessTurn(c.Request.Context(), sessionID, rd.UserID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, repos.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		case errors.Is(err, services.ErrSessionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "session is closed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"turn": result})
}

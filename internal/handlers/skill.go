package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/services"
	"github.com/yungbote/skillscope-backend/internal/types"
)

type SkillHandler struct {
	svc services.SkillService
}

func NewSkillHandler(svc services.SkillService) *SkillHandler {
	return &SkillHandler{svc: svc}
}

// GET /api/skills
func (h *SkillHandler) ListSkills(c *gin.Context) {
	skills, err := h.svc.ListSkills(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"skills": skills})
}

// GET /api/skills/:id
func (h *SkillHandler) GetSkill(c *gin.Context) {
	skillID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid skill id"})
		return
	}

	skill, err := h.svc.GetSkill(c.Request.Context(), skillID)
	if err != nil {
		if errors.Is(err, repos.ErrSkillNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "skill not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"skill": skill})
}

// POST /api/skills (teacher only)
func (h *SkillHandler) CreateSkill(c *gin.Context) {
	var req struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		RubricEmerging   string `json:"rubric_emerging"`
		RubricDeveloping string `json:"rubric_developing"`
		RubricProficient string `json:"rubric_proficient"`
		RubricApplying   string `json:"rubric_applying"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	skill, err := h.svc.CreateSkill(c.Request.Context(), &types.ComponentSkill{
		Name:             req.Name,
		Description:      req.Description,
		RubricEmerging:   req.RubricEmerging,
		RubricDeveloping: req.RubricDeveloping,
		RubricProficient: req.RubricProficient,
		RubricApplying:   req.RubricApplying,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"skill": skill})
}

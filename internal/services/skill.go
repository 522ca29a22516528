package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/types"
)

// SkillService is the curriculum catalog surface. Skills are immutable from
// the dialogue engine's point of view; only teachers author them.
type SkillService interface {
	ListSkills(ctx context.Context) ([]*types.ComponentSkill, error)
	GetSkill(ctx context.Context, skillID uuid.UUID) (*types.ComponentSkill, error)
	CreateSkill(ctx context.Context, skill *types.ComponentSkill) (*types.ComponentSkill, error)
}

type skillService struct {
	db        *gorm.DB
	log       *logger.Logger
	skillRepo repos.ComponentSkillRepo
}

func NewSkillService(db *gorm.DB, log *logger.Logger, skillRepo repos.ComponentSkillRepo) SkillService {
	return &skillService{
		db:        db,
		log:       log.With("service", "SkillService"),
		skillRepo: skillRepo,
	}
}

func (s *skillService) ListSkills(ctx context.Context) ([]*types.ComponentSkill, error) {
	return s.skillRepo.List(ctx, nil)
}

func (s *skillService) GetSkill(ctx context.Context, skillID uuid.UUID) (*types.ComponentSkill, error) {
	return s.skillRepo.GetByID(ctx, nil, skillID)
}

func (s *skillService) CreateSkill(ctx context.Context, skill *types.ComponentSkill) (*types.ComponentSkill, error) {
	if skill == nil {
		return nil, fmt.Errorf("no skill given")
	}
	skill.Name = strings.TrimSpace(skill.Name)
	if skill.Name == "" {
		return nil, fmt.Errorf("skill name required")
	}
	for _, level := range []string{types.LevelEmerging, types.LevelDeveloping, types.LevelProficient, types.LevelApplying} {
		if strings.TrimSpace(skill.RubricText(level)) == "" {
			return nil, fmt.Errorf("rubric description for %q required", level)
		}
	}
	skill.ID = uuid.New()

	created, err := s.skillRepo.Create(ctx, nil, []*types.ComponentSkill{skill})
	if err != nil {
		return nil, fmt.Errorf("create skill: %w", err)
	}
	return created[0], nil
}

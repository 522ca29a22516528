package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/types"
)

// ErrSkillNotFound is returned when a skill id has no catalog entry. Callers
// must never see a zero-value skill in place of this error.
var ErrSkillNotFound = errors.New("component skill not found")

type ComponentSkillRepo interface {
	Create(ctx context.Context, tx *gorm.DB, skills []*types.ComponentSkill) ([]*types.ComponentSkill, error)
	GetByID(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) (*types.ComponentSkill, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.ComponentSkill, error)
}

type componentSkillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewComponentSkillRepo(db *gorm.DB, baseLog *logger.Logger) ComponentSkillRepo {
	repoLog := baseLog.With("repo", "ComponentSkillRepo")
	return &componentSkillRepo{db: db, log: repoLog}
}

func (r *componentSkillRepo) Create(ctx context.Context, tx *gorm.DB, skills []*types.ComponentSkill) ([]*types.ComponentSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(skills) == 0 {
		return []*types.ComponentSkill{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&skills).Error; err != nil {
		return nil, err
	}
	return skills, nil
}

func (r *componentSkillRepo) GetByID(ctx context.Context, tx *gorm.DB, skillID uuid.UUID) (*types.ComponentSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.ComponentSkill
	if err := transaction.WithContext(ctx).
		Where("id = ?", skillID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSkillNotFound
		}
		return nil, err
	}
	return &result, nil
}

func (r *componentSkillRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.ComponentSkill, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.ComponentSkill
	if err := transaction.WithContext(ctx).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

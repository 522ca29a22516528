package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/types"
)

type SafetyIncidentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, incidents []*types.SafetyIncident) ([]*types.SafetyIncident, error)
	GetByID(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID) (*types.SafetyIncident, error)
	ListForTeacher(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, unresolvedOnly bool) ([]*types.SafetyIncident, error)
	MarkResolved(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID, reviewerID uuid.UUID) error
}

type safetyIncidentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSafetyIncidentRepo(db *gorm.DB, baseLog *logger.Logger) SafetyIncidentRepo {
	repoLog := baseLog.With("repo", "SafetyIncidentRepo")
	return &safetyIncidentRepo{db: db, log: repoLog}
}

func (r *safetyIncidentRepo) Create(ctx context.Context, tx *gorm.DB, incidents []*types.SafetyIncident) ([]*types.SafetyIncident, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(incidents) == 0 {
		return []*types.SafetyIncident{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *safetyIncidentRepo) GetByID(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID) (*types.SafetyIncident, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SafetyIncident
	if err := transaction.WithContext(ctx).
		Where("id = ?", incidentID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// ListForTeacher returns incidents the teacher was notified about, newest first.
func (r *safetyIncidentRepo) ListForTeacher(ctx context.Context, tx *gorm.DB, teacherID uuid.UUID, unresolvedOnly bool) ([]*types.SafetyIncident, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).
		Where("id IN (SELECT incident_id FROM notification WHERE teacher_id = ?)", teacherID)
	if unresolvedOnly {
		query = query.Where("resolved = false")
	}

	var results []*types.SafetyIncident
	if err := query.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *safetyIncidentRepo) MarkResolved(ctx context.Context, tx *gorm.DB, incidentID uuid.UUID, reviewerID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.SafetyIncident{}).
		Where("id = ?", incidentID).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_by": reviewerID,
			"resolved_at": now,
		}).Error
}

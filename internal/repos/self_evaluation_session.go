package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/types"
)

var ErrSessionNotFound = errors.New("self-evaluation session not found")

type SelfEvaluationSessionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, sessions []*types.SelfEvaluationSession) ([]*types.SelfEvaluationSession, error)
	GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SelfEvaluationSession, error)
	Save(ctx context.Context, tx *gorm.DB, session *types.SelfEvaluationSession) error
	AppendMessages(ctx context.Context, tx *gorm.DB, messages []*types.ConversationMessage) error
}

type selfEvaluationSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSelfEvaluationSessionRepo(db *gorm.DB, baseLog *logger.Logger) SelfEvaluationSessionRepo {
	repoLog := baseLog.With("repo", "SelfEvaluationSessionRepo")
	return &selfEvaluationSessionRepo{db: db, log: repoLog}
}

func (r *selfEvaluationSessionRepo) Create(ctx context.Context, tx *gorm.DB, sessions []*types.SelfEvaluationSession) ([]*types.SelfEvaluationSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(sessions) == 0 {
		return []*types.SelfEvaluationSession{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *selfEvaluationSessionRepo) GetByID(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*types.SelfEvaluationSession, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.SelfEvaluationSession
	if err := transaction.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", sessionID).
		First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &result, nil
}

// Save persists the mutable session fields. Messages travel through
// AppendMessages so history stays append-only.
func (r *selfEvaluationSessionRepo) Save(ctx context.Context, tx *gorm.DB, session *types.SelfEvaluationSession) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if session == nil {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.SelfEvaluationSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]any{
			"status":             session.Status,
			"student_turn_count": session.StudentTurnCount,
			"current_level":      session.CurrentLevel,
			"current_confidence": session.CurrentConfidence,
		}).Error
}

func (r *selfEvaluationSessionRepo) AppendMessages(ctx context.Context, tx *gorm.DB, messages []*types.ConversationMessage) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(messages) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).Create(&messages).Error
}

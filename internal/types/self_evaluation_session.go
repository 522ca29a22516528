package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionStatusActive           = "active"
	SessionStatusTerminatedNormal = "terminated_normal"
	SessionStatusTerminatedSafety = "terminated_safety"
)

const (
	MessageRoleTutor   = "tutor"
	MessageRoleStudent = "student"
)

type SelfEvaluationSession struct {
	ID                uuid.UUID             `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID         uuid.UUID             `gorm:"type:uuid;not null;index" json:"student_id"`
	Student           *User                 `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	SkillID           uuid.UUID             `gorm:"type:uuid;not null;index" json:"skill_id"`
	Skill             *ComponentSkill       `gorm:"foreignKey:SkillID;references:ID" json:"skill,omitempty"`
	Status            string                `gorm:"not null;column:status;default:active;index" json:"status"`
	StudentTurnCount  int                   `gorm:"not null;column:student_turn_count;default:0" json:"student_turn_count"`
	CurrentLevel      *string               `gorm:"column:current_level" json:"current_level,omitempty"`
	CurrentConfidence *float64              `gorm:"column:current_confidence" json:"current_confidence,omitempty"`
	Messages          []ConversationMessage `gorm:"constraint:OnDelete:CASCADE;foreignKey:SessionID;references:ID" json:"messages,omitempty"`
	CreatedAt         time.Time             `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time             `gorm:"not null;default:now()" json:"updated_at"`
}

func (SelfEvaluationSession) TableName() string {
	return "self_evaluation_session"
}

func (s *SelfEvaluationSession) IsActive() bool {
	return s.Status == SessionStatusActive
}

type ConversationMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"session_id"`
	Role      string    `gorm:"not null;column:role" json:"role"`
	Content   string    `gorm:"not null;column:content" json:"content"`
	Position  int       `gorm:"not null;column:position" json:"position"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ConversationMessage) TableName() string {
	return "conversation_message"
}

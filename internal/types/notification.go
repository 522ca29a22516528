package types

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TeacherID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"teacher_id"`
	Teacher    *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeacherID;references:ID" json:"teacher,omitempty"`
	IncidentID uuid.UUID       `gorm:"type:uuid;not null;index" json:"incident_id"`
	Incident   *SafetyIncident `gorm:"foreignKey:IncidentID;references:ID" json:"incident,omitempty"`
	Summary    string          `gorm:"not null;column:summary" json:"summary"`
	Read       bool            `gorm:"not null;column:read;default:false" json:"read"`
	CreatedAt  time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Notification) TableName() string {
	return "notification"
}

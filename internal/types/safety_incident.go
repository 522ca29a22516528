package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	IncidentTypeHomicidal             = "homicidal"
	IncidentTypeSuicidal              = "suicidal"
	IncidentTypeInappropriateLanguage = "inappropriate_language"
)

const (
	IncidentSeverityHigh     = "high"
	IncidentSeverityCritical = "critical"
)

// SafetyIncident is written exactly once per flagged turn and never mutated
// by the dialogue engine; Resolved is flipped by a human reviewer.
type SafetyIncident struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Student              *User          `gorm:"foreignKey:StudentID;references:ID" json:"student,omitempty"`
	TeacherID            *uuid.UUID     `gorm:"type:uuid;column:teacher_id" json:"teacher_id,omitempty"`
	SkillID              *uuid.UUID     `gorm:"type:uuid;column:skill_id" json:"skill_id,omitempty"`
	SessionID            *uuid.UUID     `gorm:"type:uuid;column:session_id;index" json:"session_id,omitempty"`
	IncidentType         string         `gorm:"not null;column:incident_type" json:"incident_type"`
	Message              string         `gorm:"not null;column:message" json:"message"`
	Severity             string         `gorm:"not null;column:severity" json:"severity"`
	ConversationSnapshot datatypes.JSON `gorm:"type:jsonb;column:conversation_snapshot" json:"conversation_snapshot"`
	Resolved             bool           `gorm:"not null;column:resolved;default:false" json:"resolved"`
	ResolvedBy           *uuid.UUID     `gorm:"type:uuid;column:resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time     `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SafetyIncident) TableName() string {
	return "safety_incident"
}

// IncidentSeverityFor maps a safety category to the recorded severity.
func IncidentSeverityFor(incidentType string) string {
	switch incidentType {
	case IncidentTypeHomicidal, IncidentTypeSuicidal:
		return IncidentSeverityCritical
	default:
		return IncidentSeverityHigh
	}
}

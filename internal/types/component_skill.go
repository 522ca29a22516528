package types

import (
	"time"

	"github.com/google/uuid"
)

// Rubric levels, ordered lowest to highest.
const (
	LevelEmerging   = "emerging"
	LevelDeveloping = "developing"
	LevelProficient = "proficient"
	LevelApplying   = "applying"
)

// RubricLevelRank returns the ordinal of a rubric level, or -1 when the
// value is not one of the four canonical levels.
func RubricLevelRank(level string) int {
	switch level {
	case LevelEmerging:
		return 0
	case LevelDeveloping:
		return 1
	case LevelProficient:
		return 2
	case LevelApplying:
		return 3
	default:
		return -1
	}
}

type ComponentSkill struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name             string    `gorm:"not null;column:name" json:"name"`
	Description      string    `gorm:"column:description" json:"description"`
	RubricEmerging   string    `gorm:"not null;column:rubric_emerging" json:"rubric_emerging"`
	RubricDeveloping string    `gorm:"not null;column:rubric_developing" json:"rubric_developing"`
	RubricProficient string    `gorm:"not null;column:rubric_proficient" json:"rubric_proficient"`
	RubricApplying   string    `gorm:"not null;column:rubric_applying" json:"rubric_applying"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ComponentSkill) TableName() string {
	return "component_skill"
}

// RubricText returns the descriptor for one rubric level.
func (s *ComponentSkill) RubricText(level string) string {
	switch level {
	case LevelEmerging:
		return s.RubricEmerging
	case LevelDeveloping:
		return s.RubricDeveloping
	case LevelProficient:
		return s.RubricProficient
	case LevelApplying:
		return s.RubricApplying
	default:
		return ""
	}
}

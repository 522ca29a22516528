package types

import (
	"time"

	"github.com/google/uuid"
)

// TeacherStudent is the teacher-of-record link. Supervision eligibility is
// this link plus same-school membership.
type TeacherStudent struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TeacherID uuid.UUID `gorm:"type:uuid;not null;index:idx_teacher_student,unique" json:"teacher_id"`
	Teacher   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TeacherID;references:ID" json:"teacher,omitempty"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index:idx_teacher_student,unique" json:"student_id"`
	Student   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (TeacherStudent) TableName() string {
	return "teacher_student"
}

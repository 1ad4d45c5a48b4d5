package model

import (
	"time"

	"gorm.io/gorm"
)

// Review is a student's rating of a course. One per (student, course) pair.
type Review struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	StudentID uint           `gorm:"not null;uniqueIndex:idx_student_course_review" json:"student_id"`
	CourseID  uint           `gorm:"not null;uniqueIndex:idx_student_course_review" json:"course_id"`
	Rating    int            `gorm:"not null" json:"rating"` // 1..5
	Comment   string         `gorm:"type:text" json:"comment"`

	// Relationships
	Student User   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Course  Course `gorm:"foreignKey:CourseID" json:"-"`
}

// TableName specifies the table name for Review
func (Review) TableName() string {
	return "reviews"
}

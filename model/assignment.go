package model

import (
	"time"

	"gorm.io/gorm"
)

// Assignment is instructor-set coursework with a due date
type Assignment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID     uint           `gorm:"not null;index" json:"course_id"`
	Title        string         `gorm:"not null" json:"title"`
	Instructions string         `gorm:"type:text" json:"instructions"`
	DueAt        *time.Time     `json:"due_at,omitempty"`
	MaxScore     int            `gorm:"default:100" json:"max_score"`
	IsPublished  bool           `gorm:"default:false" json:"is_published"`

	// Relationships
	Course      Course                 `gorm:"foreignKey:CourseID" json:"-"`
	Submissions []AssignmentSubmission `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Assignment
func (Assignment) TableName() string {
	return "assignments"
}

// AssignmentSubmission is a student's answer to an assignment.
// One submission per (assignment, student) pair.
type AssignmentSubmission struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	AssignmentID uint           `gorm:"not null;uniqueIndex:idx_assignment_student" json:"assignment_id"`
	StudentID    uint           `gorm:"not null;uniqueIndex:idx_assignment_student" json:"student_id"`
	Content      string         `gorm:"type:text" json:"content"`
	SubmittedAt  time.Time      `gorm:"not null" json:"submitted_at"`
	Score        *int           `json:"score,omitempty"`
	Feedback     string         `gorm:"type:text" json:"feedback"`
	GradedAt     *time.Time     `json:"graded_at,omitempty"`
	GradedBy     *uint          `json:"graded_by,omitempty"`

	// Relationships
	Assignment Assignment `gorm:"foreignKey:AssignmentID" json:"-"`
	Student    User       `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

// TableName specifies the table name for AssignmentSubmission
func (AssignmentSubmission) TableName() string {
	return "assignment_submissions"
}

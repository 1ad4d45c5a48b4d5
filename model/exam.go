package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Exam is a timed assessment attached to a course
type Exam struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	Title           string         `gorm:"not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	DurationMinutes int            `gorm:"default:60" json:"duration_minutes"`
	TotalMarks      int            `gorm:"default:100" json:"total_marks"`
	PassMarks       int            `gorm:"default:40" json:"pass_marks"`
	IsPublished     bool           `gorm:"default:false" json:"is_published"`

	// Relationships
	Course    Course     `gorm:"foreignKey:CourseID" json:"-"`
	Questions []Question `gorm:"foreignKey:ExamID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// TableName specifies the table name for Exam
func (Exam) TableName() string {
	return "exams"
}

// Question is a multiple-choice question inside an exam. Options are stored
// as a JSON array of strings; CorrectIndex points into it.
type Question struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	ExamID       uint           `gorm:"not null;index" json:"exam_id"`
	Text         string         `gorm:"type:text;not null" json:"text"`
	Options      datatypes.JSON `gorm:"type:jsonb" json:"options"`
	CorrectIndex int            `gorm:"default:0" json:"-"` // never exposed to students
	Marks        int            `gorm:"default:1" json:"marks"`
	Order        int            `gorm:"default:0" json:"order"`

	// Relationships
	Exam Exam `gorm:"foreignKey:ExamID" json:"-"`
}

// TableName specifies the table name for Question
func (Question) TableName() string {
	return "questions"
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// EnrollmentStatus is the lifecycle status of an enrollment
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

// Enrollment payment states
const (
	EnrollmentPaymentFree    = "free"
	EnrollmentPaymentPending = "pending"
	EnrollmentPaymentPaid    = "paid"
)

// Enrollment records a student's relationship to a course, including how far
// along they are. One row per (student, course) pair.
type Enrollment struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"-"`
	StudentID      uint             `gorm:"not null;uniqueIndex:idx_student_course" json:"student_id"`
	CourseID       uint             `gorm:"not null;uniqueIndex:idx_student_course" json:"course_id"`
	EnrolledAt     time.Time        `gorm:"not null" json:"enrolled_at"`
	Status         EnrollmentStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	Progress       int              `gorm:"default:0" json:"progress"` // 0..100
	LastAccessedAt *time.Time       `json:"last_accessed_at,omitempty"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
	PaymentStatus  string           `gorm:"type:varchar(20);default:'free'" json:"payment_status"`
	PaymentAmount  float64          `gorm:"default:0" json:"payment_amount"`

	// Relationships
	Student User   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Course  Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}

// LessonProgress is the per-(user, lesson) completion fact. Created on first
// interaction with a lesson, flipped to completed once; never deleted.
type LessonProgress struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	UserID           uint           `gorm:"not null;uniqueIndex:idx_user_lesson" json:"user_id"`
	LessonID         uint           `gorm:"not null;uniqueIndex:idx_user_lesson" json:"lesson_id"`
	CourseID         uint           `gorm:"not null;index" json:"course_id"`
	IsCompleted      bool           `gorm:"default:false;index" json:"is_completed"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
	TimeSpentSeconds int            `gorm:"default:0" json:"time_spent_seconds"`

	// Relationships
	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Lesson Lesson `gorm:"foreignKey:LessonID" json:"-"`
}

// TableName specifies the table name for LessonProgress
func (LessonProgress) TableName() string {
	return "lesson_progress"
}

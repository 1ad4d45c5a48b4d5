package model

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// CourseStatus is the publication status of a course
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

var (
	ErrPaidCourseNeedsPrice = errors.New("paid course must have a price greater than zero")
	ErrSalePriceTooHigh     = errors.New("sale price must be lower than the regular price")
)

// Course represents a sellable course made of chapters and lessons
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	InstructorID uint           `gorm:"not null;index" json:"instructor_id"`
	Title        string         `gorm:"not null" json:"title"`
	Description  string         `gorm:"type:text" json:"description"`
	Status       CourseStatus   `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	IsPaid       bool           `gorm:"default:false" json:"is_paid"`
	Price        float64        `gorm:"default:0" json:"price"`
	SalePrice    *float64       `json:"sale_price,omitempty"`

	// Relationships
	Instructor  User         `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Chapters    []Chapter    `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	Lessons     []Lesson     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Reviews     []Review     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// ValidatePricing enforces the pricing invariants for a course.
// A paid course must carry a positive price, and a sale price must undercut it.
func (c *Course) ValidatePricing() error {
	if c.IsPaid && c.Price <= 0 {
		return ErrPaidCourseNeedsPrice
	}
	if c.SalePrice != nil && *c.SalePrice >= c.Price {
		return ErrSalePriceTooHigh
	}
	return nil
}

// EffectivePrice returns the price a student actually pays
func (c *Course) EffectivePrice() float64 {
	if !c.IsPaid {
		return 0
	}
	if c.SalePrice != nil && *c.SalePrice > 0 {
		return *c.SalePrice
	}
	return c.Price
}

// Chapter groups lessons inside a course
type Chapter struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"not null" json:"title"`
	Order     int            `gorm:"not null;default:0" json:"order"`

	// Relationships
	Course  Course   `gorm:"foreignKey:CourseID" json:"-"`
	Lessons []Lesson `gorm:"foreignKey:ChapterID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
}

// TableName specifies the table name for Chapter
func (Chapter) TableName() string {
	return "chapters"
}

// Lesson is a single unit of content. CourseID is denormalized from the
// chapter so progress queries don't need a join.
type Lesson struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	ChapterID       uint           `gorm:"not null;index" json:"chapter_id"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	Title           string         `gorm:"not null" json:"title"`
	Order           int            `gorm:"not null;default:0" json:"order"`
	IsPublished     bool           `gorm:"default:false;index" json:"is_published"`
	VideoURL        string         `gorm:"type:text" json:"video_url"`
	DurationSeconds int            `gorm:"default:0" json:"duration_seconds"`

	// Relationships
	Chapter Chapter `gorm:"foreignKey:ChapterID" json:"-"`
}

// TableName specifies the table name for Lesson
func (Lesson) TableName() string {
	return "lessons"
}

package model

import (
	"time"

	"gorm.io/gorm"
)

// User roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Name         string         `gorm:"not null" json:"name"`
	Role         string         `gorm:"type:varchar(20);default:'student'" json:"role"` // student, instructor, admin
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	TokenVersion int            `gorm:"default:0" json:"-"` // Increment to invalidate all user tokens

	// Relationships
	Enrollments    []Enrollment        `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Payments       []Payment           `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Reviews        []Review            `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications  []UserNotification  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	AdminAuditLog  []AdminAuditLog     `gorm:"foreignKey:AdminID;constraint:OnDelete:CASCADE" json:"-"`
	TokenBlacklist []JWTTokenBlacklist `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsStaff reports whether the user can manage course content
func (u *User) IsStaff() bool {
	return u.Role == RoleInstructor || u.Role == RoleAdmin
}

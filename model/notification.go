package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType indicates the visual severity of a notification
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// NotificationCategory groups notifications by the feature that produced them
type NotificationCategory string

const (
	NotificationCategoryEnrollment NotificationCategory = "enrollment"
	NotificationCategoryPayment    NotificationCategory = "payment"
	NotificationCategoryRefund     NotificationCategory = "refund"
	NotificationCategorySystem     NotificationCategory = "system"
)

// UserNotification is an in-app notification for a user
type UserNotification struct {
	ID        uint                 `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
	DeletedAt gorm.DeletedAt       `gorm:"index" json:"-"`
	UserID    uint                 `gorm:"not null;index" json:"user_id"`
	Type      NotificationType     `gorm:"type:varchar(20);default:'info'" json:"type"`
	Category  NotificationCategory `gorm:"type:varchar(30);default:'system';index" json:"category"`
	Title     string               `gorm:"not null" json:"title"`
	Message   string               `gorm:"type:text" json:"message"`
	Read      bool                 `gorm:"default:false;index" json:"read"`
	Metadata  datatypes.JSON       `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for UserNotification
func (UserNotification) TableName() string {
	return "user_notifications"
}

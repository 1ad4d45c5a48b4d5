package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/learnhub/lms-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationService handles in-app user notifications
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// CreateNotificationRequest represents a request to create a notification
type CreateNotificationRequest struct {
	UserID   uint
	Type     model.NotificationType
	Category model.NotificationCategory
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// ListNotificationsOptions represents options for listing notifications
type ListNotificationsOptions struct {
	UserID     uint
	UnreadOnly bool
	Category   string
	Limit      int
	Offset     int
}

// CreateNotification creates a new notification for a user
func (s *NotificationService) CreateNotification(ctx context.Context, req CreateNotificationRequest) (*model.UserNotification, error) {
	notification := &model.UserNotification{
		UserID:   req.UserID,
		Type:     req.Type,
		Category: req.Category,
		Title:    req.Title,
		Message:  req.Message,
		Read:     false,
	}

	if req.Metadata != nil {
		metadataJSON, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(metadataJSON)
	}

	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	log.Printf("Created notification %d for user %d: %s", notification.ID, req.UserID, req.Title)
	return notification, nil
}

// ListNotifications lists a user's notifications, newest first
func (s *NotificationService) ListNotifications(ctx context.Context, opts ListNotificationsOptions) ([]model.UserNotification, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.UserNotification{}).Where("user_id = ?", opts.UserID)

	if opts.UnreadOnly {
		query = query.Where("read = ?", false)
	}
	if opts.Category != "" {
		query = query.Where("category = ?", opts.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var notifications []model.UserNotification
	err := query.Order("created_at DESC").Limit(limit).Offset(opts.Offset).Find(&notifications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// MarkRead marks a single notification as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	result := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllRead marks all of a user's notifications as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) error {
	return s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true).Error
}

// UnreadCount returns the number of unread notifications for a user
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.UserNotification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// NotifyEnrollmentCompleted records a notification when a student finishes a course
func (s *NotificationService) NotifyEnrollmentCompleted(ctx context.Context, enrollment *model.Enrollment, courseTitle string) {
	_, err := s.CreateNotification(ctx, CreateNotificationRequest{
		UserID:   enrollment.StudentID,
		Type:     model.NotificationTypeSuccess,
		Category: model.NotificationCategoryEnrollment,
		Title:    "Course completed",
		Message:  fmt.Sprintf("Congratulations, you completed %q.", courseTitle),
		Metadata: map[string]interface{}{"course_id": enrollment.CourseID, "enrollment_id": enrollment.ID},
	})
	if err != nil {
		log.Printf("Failed to create completion notification for user %d: %v", enrollment.StudentID, err)
	}
}

// NotifyRefundResolved records a notification when a refund reaches a terminal state
func (s *NotificationService) NotifyRefundResolved(ctx context.Context, payment *model.Payment) {
	title := "Refund processed"
	notifType := model.NotificationTypeSuccess
	message := fmt.Sprintf("Your refund for transaction %s has been processed.", payment.TransactionID)
	if payment.RefundStatus == model.RefundStatusFailed {
		title = "Refund failed"
		notifType = model.NotificationTypeError
		message = fmt.Sprintf("Your refund for transaction %s could not be processed. Support has been notified.", payment.TransactionID)
	}

	_, err := s.CreateNotification(ctx, CreateNotificationRequest{
		UserID:   payment.StudentID,
		Type:     notifType,
		Category: model.NotificationCategoryRefund,
		Title:    title,
		Message:  message,
		Metadata: map[string]interface{}{"payment_id": payment.ID, "refund_ref_id": payment.RefundRefID},
	})
	if err != nil {
		log.Printf("Failed to create refund notification for user %d: %v", payment.StudentID, err)
	}
}

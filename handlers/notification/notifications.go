package notification

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"gorm.io/gorm"
)

// NotificationHandler handles in-app notification endpoints
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(db *gorm.DB) *NotificationHandler {
	return &NotificationHandler{
		notifications: services.NewNotificationService(db),
	}
}

// List returns the authenticated user's notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}

	notifications, total, err := h.notifications.ListNotifications(c.Context(), services.ListNotificationsOptions{
		UserID:     userID,
		UnreadOnly: c.QueryBool("unread"),
		Category:   c.Query("category"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to list notifications")
	}

	return response.Paginated(c, notifications, response.CalculatePagination(page, limit, total))
}

// UnreadCount returns the number of unread notifications
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	count, err := h.notifications.UnreadCount(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to count notifications")
	}

	return response.Success(c, fiber.Map{"unread": count})
}

// MarkRead marks one notification as read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid notification id")
	}

	if err := h.notifications.MarkRead(c.Context(), userID, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Notification not found")
		}
		return response.InternalServerError(c, "Failed to mark notification read")
	}

	return response.SuccessWithMessage(c, "Notification marked read", nil)
}

// MarkAllRead marks every unread notification as read
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if err := h.notifications.MarkAllRead(c.Context(), userID); err != nil {
		return response.InternalServerError(c, "Failed to mark notifications read")
	}

	return response.SuccessWithMessage(c, "All notifications marked read", nil)
}

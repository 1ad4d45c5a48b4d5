package admin

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"gorm.io/gorm"
)

// UpdateRoleRequest represents the role change request body
type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student instructor admin"`
}

// ListUsers returns all users with pagination and optional role filter
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.User{})
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count users")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var users []model.User
	err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&users).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	return response.Paginated(c, users, pagination)
}

// UpdateUserRole changes a user's role. All the user's tokens are invalidated
// so the new role takes effect immediately.
func (h *AdminHandler) UpdateUserRole(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	var req UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	if err := h.db.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to load user")
	}

	if err := h.db.Model(&user).Update("role", req.Role).Error; err != nil {
		return response.InternalServerError(c, "Failed to update role")
	}

	blacklist := auth.NewBlacklistService(h.db)
	if err := blacklist.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}

	user.Role = req.Role
	return response.SuccessWithMessage(c, "Role updated", user)
}

// SetUserActive activates or deactivates a user account. Deactivation also
// invalidates every outstanding token.
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	admin, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if uint(id) == admin.ID && !req.IsActive {
		return response.BadRequest(c, "You cannot deactivate your own account")
	}

	var user model.User
	if err := h.db.First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "User not found")
		}
		return response.InternalServerError(c, "Failed to load user")
	}

	if err := h.db.Model(&user).Update("is_active", req.IsActive).Error; err != nil {
		return response.InternalServerError(c, "Failed to update user")
	}

	if !req.IsActive {
		blacklist := auth.NewBlacklistService(h.db)
		if err := blacklist.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
			return response.InternalServerError(c, "Failed to invalidate sessions")
		}
	}

	user.IsActive = req.IsActive
	return response.SuccessWithMessage(c, "User updated", user)
}

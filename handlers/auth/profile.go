package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
)

// UpdateProfileRequest represents the profile update request body
type UpdateProfileRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// ChangePasswordRequest represents the password change request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// GetProfile returns the authenticated user's profile
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	return response.Success(c, user)
}

// UpdateProfile updates the authenticated user's profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Name = validation.SanitizeString(req.Name)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := h.db.Model(user).Update("name", req.Name).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	user.Name = req.Name
	return response.SuccessWithMessage(c, "Profile updated", user)
}

// ChangePassword changes the user's password and invalidates all existing tokens
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		return response.Unauthorized(c, "Current password is incorrect")
	}

	if !auth.IsPasswordValid(req.NewPassword) {
		return response.FieldValidationError(c, "new_password", "Password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}

	// Force re-login everywhere
	if err := h.blacklistService.RevokeAllUserTokens(c.Context(), user.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}

	return response.SuccessWithMessage(c, "Password changed. Please log in again.", nil)
}

package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Role     string `json:"role" validate:"omitempty,oneof=student instructor"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(validation.SanitizeString(req.Email))
	req.Name = validation.SanitizeString(req.Name)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if !auth.IsPasswordValid(req.Password) {
		return response.FieldValidationError(c, "password", "Password must be at least 8 characters")
	}

	var existing model.User
	err := h.db.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		return response.Conflict(c, "An account with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to check existing account")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	role := req.Role
	if role == "" {
		role = model.RoleStudent
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         role,
		IsActive:     true,
	}
	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create account")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}
	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Created(c, fiber.Map{
		"user": user,
		"tokens": TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	})
}

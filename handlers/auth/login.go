package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) recordFailedAttempt(c *fiber.Ctx, email string) {
	if h.bruteForce != nil {
		h.bruteForce.RecordFailedAttempt(c, c.IP(), email)
	}
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Email = strings.ToLower(validation.SanitizeString(req.Email))

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var user model.User
	err := h.db.Where("email = ?", req.Email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.recordFailedAttempt(c, req.Email)
			return response.Unauthorized(c, "Invalid email or password")
		}
		return response.InternalServerError(c, "Failed to look up account")
	}

	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.recordFailedAttempt(c, req.Email)
		return response.Unauthorized(c, "Invalid email or password")
	}

	if !user.IsActive {
		return response.Forbidden(c, "Account is deactivated")
	}

	if h.bruteForce != nil {
		h.bruteForce.RecordSuccessfulAttempt(c, c.IP())
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}
	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Success(c, fiber.Map{
		"user": user,
		"tokens": TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		},
	})
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid refresh token")
	}

	revoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if revoked {
		return response.Unauthorized(c, "Refresh token has been revoked")
	}

	var user model.User
	if err := h.db.First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "Invalid refresh token")
	}
	if !user.IsActive || user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Refresh token has been invalidated")
	}

	accessToken, _, err := h.jwtManager.GenerateAccessToken(user.ID, user.Email, user.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate token")
	}

	return response.Success(c, fiber.Map{"access_token": accessToken})
}

// Logout revokes the current access token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	jti, ok := middleware.GetTokenJTI(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	userID, _ := middleware.GetUserID(c)

	claims, _ := c.Locals("claims").(*auth.Claims)
	if claims == nil || claims.ExpiresAt == nil {
		return response.Unauthorized(c, "")
	}

	err := h.blacklistService.RevokeToken(c.Context(), jti, userID, claims.ExpiresAt.Time, "logout")
	if err != nil {
		return response.InternalServerError(c, "Failed to revoke token")
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}

package auth

import (
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	db               *gorm.DB
	validator        *validation.Validator
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	bruteForce       *middleware.BruteForceProtection
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *auth.JWTManager, bruteForce *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:               db,
		validator:        validation.NewValidator(),
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		bruteForce:       bruteForce,
	}
}

// TokenPair is the token portion of an auth response
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

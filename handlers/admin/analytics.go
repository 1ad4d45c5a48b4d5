package admin

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// AdminHandler handles admin dashboard, user management and audit endpoints
type AdminHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	analytics *services.AnalyticsService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{
		db:        db,
		validator: validation.NewValidator(),
		analytics: services.NewAnalyticsService(db),
	}
}

// Dashboard returns overall platform statistics
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.analytics.GetDashboardStats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load dashboard statistics")
	}
	return response.Success(c, stats)
}

// CourseStats returns rollups for a single course
func (h *AdminHandler) CourseStats(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	stats, err := h.analytics.GetCourseStats(c.Context(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to load course statistics")
	}
	return response.Success(c, stats)
}

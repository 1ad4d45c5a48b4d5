package review

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// ReviewHandler handles course review endpoints
type ReviewHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// ReviewRequest represents the review create/update request body
type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// Create posts a review for a course the student is enrolled in.
// One review per (student, course) pair.
func (h *ReviewHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Comment = validation.SanitizeString(req.Comment)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var enrollment model.Enrollment
	err = h.db.Where("student_id = ? AND course_id = ?", user.ID, uint(courseID)).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Forbidden(c, "You must be enrolled to review this course")
		}
		return response.InternalServerError(c, "Failed to check enrollment")
	}

	var existing model.Review
	err = h.db.Where("student_id = ? AND course_id = ?", user.ID, uint(courseID)).
		First(&existing).Error
	if err == nil {
		return response.Conflict(c, "You have already reviewed this course")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to check existing review")
	}

	review := model.Review{
		StudentID: user.ID,
		CourseID:  uint(courseID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := h.db.Create(&review).Error; err != nil {
		return response.InternalServerError(c, "Failed to create review")
	}

	return response.Created(c, review)
}

// ListForCourse returns the reviews of a course, newest first
func (h *ReviewHandler) ListForCourse(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.Review{}).Where("course_id = ?", uint(courseID))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count reviews")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var reviews []model.Review
	err = query.Preload("Student").
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&reviews).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list reviews")
	}

	return response.Paginated(c, reviews, pagination)
}

// Delete removes a review. Students may delete their own; admins any.
func (h *ReviewHandler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid review id")
	}

	var review model.Review
	if err := h.db.First(&review, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Review not found")
		}
		return response.InternalServerError(c, "Failed to load review")
	}

	if user.Role != model.RoleAdmin && review.StudentID != user.ID {
		return response.Forbidden(c, "You may only delete your own reviews")
	}

	if err := h.db.Delete(&review).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete review")
	}

	return response.SuccessWithMessage(c, "Review deleted", nil)
}

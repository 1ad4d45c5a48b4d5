package lesson

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

// LessonHandler handles lesson management endpoints
type LessonHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(db *gorm.DB) *LessonHandler {
	return &LessonHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateLessonRequest represents the lesson creation request body
type CreateLessonRequest struct {
	Title           string `json:"title" validate:"required,min=2,max=200"`
	Order           int    `json:"order" validate:"gte=0"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
}

// UpdateLessonRequest represents the lesson update request body
type UpdateLessonRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=2,max=200"`
	Order           *int    `json:"order" validate:"omitempty,gte=0"`
	VideoURL        *string `json:"video_url" validate:"omitempty,url"`
	DurationSeconds *int    `json:"duration_seconds" validate:"omitempty,gte=0"`
	IsPublished     *bool   `json:"is_published"`
}

// requireOwnership checks the user may modify the course's content
func (h *LessonHandler) requireOwnership(c *fiber.Ctx, courseID uint) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if user.Role != model.RoleAdmin && course.InstructorID != user.ID {
		return response.Forbidden(c, "You do not own this course")
	}
	return nil
}

// Create adds a lesson to a chapter
func (h *LessonHandler) Create(c *fiber.Ctx) error {
	chapterID, err := strconv.ParseUint(c.Params("chapterId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid chapter id")
	}

	var chapter model.Chapter
	if err := h.db.First(&chapter, uint(chapterID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to load chapter")
	}

	if errResp := h.requireOwnership(c, chapter.CourseID); errResp != nil {
		return errResp
	}

	var req CreateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	lesson := model.Lesson{
		ChapterID:       chapter.ID,
		CourseID:        chapter.CourseID,
		Title:           req.Title,
		Order:           req.Order,
		VideoURL:        req.VideoURL,
		DurationSeconds: req.DurationSeconds,
	}
	if err := h.db.Create(&lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to create lesson")
	}

	return response.Created(c, lesson)
}

// Update modifies a lesson. Publishing a new lesson into a course changes its
// denominator; stored enrollment progress catches up on the next
// reconciliation sweep.
func (h *LessonHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid lesson id")
	}

	var lesson model.Lesson
	if err := h.db.First(&lesson, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to load lesson")
	}

	if errResp := h.requireOwnership(c, lesson.CourseID); errResp != nil {
		return errResp
	}

	var req UpdateLessonRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = validation.SanitizeString(*req.Title)
	}
	if req.Order != nil {
		updates["order"] = *req.Order
	}
	if req.VideoURL != nil {
		updates["video_url"] = *req.VideoURL
	}
	if req.DurationSeconds != nil {
		updates["duration_seconds"] = *req.DurationSeconds
	}
	if req.IsPublished != nil {
		updates["is_published"] = *req.IsPublished
	}
	if len(updates) == 0 {
		return response.Success(c, lesson)
	}

	if err := h.db.Model(&lesson).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update lesson")
	}

	if err := h.db.First(&lesson, lesson.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to reload lesson")
	}
	return response.SuccessWithMessage(c, "Lesson updated", lesson)
}

// Delete removes a lesson
func (h *LessonHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid lesson id")
	}

	var lesson model.Lesson
	if err := h.db.First(&lesson, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to load lesson")
	}

	if errResp := h.requireOwnership(c, lesson.CourseID); errResp != nil {
		return errResp
	}

	if err := h.db.Delete(&lesson).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete lesson")
	}

	return response.SuccessWithMessage(c, "Lesson deleted", nil)
}

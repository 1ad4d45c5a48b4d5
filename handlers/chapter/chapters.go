package chapter

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

// ChapterHandler handles chapter management endpoints
type ChapterHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewChapterHandler creates a new chapter handler
func NewChapterHandler(db *gorm.DB) *ChapterHandler {
	return &ChapterHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// ChapterRequest represents the chapter create/update request body
type ChapterRequest struct {
	Title string `json:"title" validate:"required,min=2,max=200"`
	Order int    `json:"order" validate:"gte=0"`
}

// loadOwnedCourse loads the course and checks the user may modify it
func (h *ChapterHandler) loadOwnedCourse(c *fiber.Ctx, courseID uint) (*model.Course, error) {
	user, ok := middleware.GetUser(c)
	if !ok {
		return nil, response.Unauthorized(c, "")
	}

	var course model.Course
	if err := h.db.First(&course, courseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NotFound(c, "Course not found")
		}
		return nil, response.InternalServerError(c, "Failed to load course")
	}

	if user.Role != model.RoleAdmin && course.InstructorID != user.ID {
		return nil, response.Forbidden(c, "You do not own this course")
	}
	return &course, nil
}

// Create adds a chapter to a course
func (h *ChapterHandler) Create(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	course, errResp := h.loadOwnedCourse(c, uint(courseID))
	if errResp != nil {
		return errResp
	}

	var req ChapterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	chapter := model.Chapter{
		CourseID: course.ID,
		Title:    req.Title,
		Order:    req.Order,
	}
	if err := h.db.Create(&chapter).Error; err != nil {
		return response.InternalServerError(c, "Failed to create chapter")
	}

	return response.Created(c, chapter)
}

// Update modifies a chapter
func (h *ChapterHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid chapter id")
	}

	var chapter model.Chapter
	if err := h.db.First(&chapter, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to load chapter")
	}

	if _, errResp := h.loadOwnedCourse(c, chapter.CourseID); errResp != nil {
		return errResp
	}

	var req ChapterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{
		"title": req.Title,
		"order": req.Order,
	}
	if err := h.db.Model(&chapter).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update chapter")
	}

	chapter.Title = req.Title
	chapter.Order = req.Order
	return response.SuccessWithMessage(c, "Chapter updated", chapter)
}

// Delete removes a chapter and its lessons
func (h *ChapterHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid chapter id")
	}

	var chapter model.Chapter
	if err := h.db.First(&chapter, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to load chapter")
	}

	if _, errResp := h.loadOwnedCourse(c, chapter.CourseID); errResp != nil {
		return errResp
	}

	if err := h.db.Delete(&chapter).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete chapter")
	}

	return response.SuccessWithMessage(c, "Chapter deleted", nil)
}

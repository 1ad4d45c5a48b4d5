package assignment

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// AssignmentHandler handles assignment and submission endpoints
type AssignmentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(db *gorm.DB) *AssignmentHandler {
	return &AssignmentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// AssignmentRequest represents the assignment create/update request body
type AssignmentRequest struct {
	Title        string     `json:"title" validate:"required,min=2,max=200"`
	Instructions string     `json:"instructions" validate:"max=10000"`
	DueAt        *time.Time `json:"due_at"`
	MaxScore     int        `json:"max_score" validate:"gte=1,lte=1000"`
	IsPublished  bool       `json:"is_published"`
}

// SubmitRequest represents the student submission request body
type SubmitRequest struct {
	Content string `json:"content" validate:"required,min=1,max=50000"`
}

// GradeRequest represents the instructor grading request body
type GradeRequest struct {
	Score    int    `json:"score" validate:"gte=0"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

// requireOwnership checks the user may manage the course's assignments
func (h *AssignmentHandler) requireOwnership(c *fiber.Ctx, courseID uint) error {
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

// Create adds an assignment to a course
func (h *AssignmentHandler) Create(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	if errResp := h.requireOwnership(c, uint(courseID)); errResp != nil {
		return errResp
	}

	var req AssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	assignment := model.Assignment{
		CourseID:     uint(courseID),
		Title:        req.Title,
		Instructions: req.Instructions,
		DueAt:        req.DueAt,
		MaxScore:     req.MaxScore,
		IsPublished:  req.IsPublished,
	}
	if err := h.db.Create(&assignment).Error; err != nil {
		return response.InternalServerError(c, "Failed to create assignment")
	}

	return response.Created(c, assignment)
}

// ListForCourse returns the assignments of a course. Students only see
// published ones.
func (h *AssignmentHandler) ListForCourse(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	query := h.db.Where("course_id = ?", uint(courseID))
	if !user.IsStaff() {
		query = query.Where("is_published = ?", true)
	}

	var assignments []model.Assignment
	if err := query.Order("due_at ASC").Find(&assignments).Error; err != nil {
		return response.InternalServerError(c, "Failed to list assignments")
	}

	return response.Success(c, assignments)
}

// Update modifies an assignment
func (h *AssignmentHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid assignment id")
	}

	var assignment model.Assignment
	if err := h.db.First(&assignment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Assignment not found")
		}
		return response.InternalServerError(c, "Failed to load assignment")
	}

	if errResp := h.requireOwnership(c, assignment.CourseID); errResp != nil {
		return errResp
	}

	var req AssignmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	updates := map[string]interface{}{
		"title":        req.Title,
		"instructions": req.Instructions,
		"due_at":       req.DueAt,
		"max_score":    req.MaxScore,
		"is_published": req.IsPublished,
	}
	if err := h.db.Model(&assignment).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update assignment")
	}

	if err := h.db.First(&assignment, assignment.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to reload assignment")
	}
	return response.SuccessWithMessage(c, "Assignment updated", assignment)
}

// Delete removes an assignment and its submissions
func (h *AssignmentHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid assignment id")
	}

	var assignment model.Assignment
	if err := h.db.First(&assignment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Assignment not found")
		}
		return response.InternalServerError(c, "Failed to load assignment")
	}

	if errResp := h.requireOwnership(c, assignment.CourseID); errResp != nil {
		return errResp
	}

	if err := h.db.Delete(&assignment).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete assignment")
	}

	return response.SuccessWithMessage(c, "Assignment deleted", nil)
}

// Submit records a student's submission. Resubmitting before grading
// replaces the content; a graded submission is final.
func (h *AssignmentHandler) Submit(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	assignmentID, err := strconv.ParseUint(c.Params("assignmentId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid assignment id")
	}

	var assignment model.Assignment
	err = h.db.Where("id = ? AND is_published = ?", uint(assignmentID), true).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Assignment not found")
		}
		return response.InternalServerError(c, "Failed to load assignment")
	}

	var enrollment model.Enrollment
	err = h.db.Where("student_id = ? AND course_id = ?", user.ID, assignment.CourseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Forbidden(c, "You are not enrolled in this course")
		}
		return response.InternalServerError(c, "Failed to check enrollment")
	}

	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	now := time.Now()
	var submission model.AssignmentSubmission
	err = h.db.Where("assignment_id = ? AND student_id = ?", assignment.ID, user.ID).
		First(&submission).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission = model.AssignmentSubmission{
			AssignmentID: assignment.ID,
			StudentID:    user.ID,
			Content:      req.Content,
			SubmittedAt:  now,
		}
		if err := h.db.Create(&submission).Error; err != nil {
			return response.InternalServerError(c, "Failed to record submission")
		}
		return response.Created(c, submission)
	case err != nil:
		return response.InternalServerError(c, "Failed to load submission")
	default:
		if submission.GradedAt != nil {
			return response.Conflict(c, "This submission has already been graded")
		}
		updates := map[string]interface{}{
			"content":      req.Content,
			"submitted_at": now,
		}
		if err := h.db.Model(&submission).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to update submission")
		}
		submission.Content = req.Content
		submission.SubmittedAt = now
		return response.SuccessWithMessage(c, "Submission updated", submission)
	}
}

// ListSubmissions returns the submissions for an assignment. Instructor only.
func (h *AssignmentHandler) ListSubmissions(c *fiber.Ctx) error {
	assignmentID, err := strconv.ParseUint(c.Params("assignmentId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid assignment id")
	}

	var assignment model.Assignment
	if err := h.db.First(&assignment, uint(assignmentID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Assignment not found")
		}
		return response.InternalServerError(c, "Failed to load assignment")
	}

	if errResp := h.requireOwnership(c, assignment.CourseID); errResp != nil {
		return errResp
	}

	var submissions []model.AssignmentSubmission
	err = h.db.Preload("Student").
		Where("assignment_id = ?", assignment.ID).
		Order("submitted_at ASC").
		Find(&submissions).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list submissions")
	}

	return response.Success(c, submissions)
}

// Grade scores a submission. Instructor only.
func (h *AssignmentHandler) Grade(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid submission id")
	}

	var submission model.AssignmentSubmission
	if err := h.db.Preload("Assignment").First(&submission, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Submission not found")
		}
		return response.InternalServerError(c, "Failed to load submission")
	}

	if errResp := h.requireOwnership(c, submission.Assignment.CourseID); errResp != nil {
		return errResp
	}

	var req GradeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.Score > submission.Assignment.MaxScore {
		return response.FieldValidationError(c, "score", "Score cannot exceed the assignment's max score")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"score":     req.Score,
		"feedback":  req.Feedback,
		"graded_at": now,
		"graded_by": user.ID,
	}
	if err := h.db.Model(&submission).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to grade submission")
	}

	if err := h.db.First(&submission, submission.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to reload submission")
	}
	return response.SuccessWithMessage(c, "Submission graded", submission)
}

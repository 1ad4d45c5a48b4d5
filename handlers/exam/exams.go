package exam

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExamHandler handles exam and question management endpoints
type ExamHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewExamHandler creates a new exam handler
func NewExamHandler(db *gorm.DB) *ExamHandler {
	return &ExamHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// ExamRequest represents the exam create/update request body
type ExamRequest struct {
	Title           string `json:"title" validate:"required,min=2,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=1,lte=480"`
	TotalMarks      int    `json:"total_marks" validate:"gte=1"`
	PassMarks       int    `json:"pass_marks" validate:"gte=0"`
	IsPublished     bool   `json:"is_published"`
}

// QuestionRequest represents the question create/update request body
type QuestionRequest struct {
	Text         string   `json:"text" validate:"required,min=2"`
	Options      []string `json:"options" validate:"required,min=2,max=10,dive,required"`
	CorrectIndex int      `json:"correct_index" validate:"gte=0"`
	Marks        int      `json:"marks" validate:"gte=1"`
	Order        int      `json:"order" validate:"gte=0"`
}

// requireOwnership checks the user may modify the course's exams
func (h *ExamHandler) requireOwnership(c *fiber.Ctx, courseID uint) error {
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

// Create adds an exam to a course
func (h *ExamHandler) Create(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	if errResp := h.requireOwnership(c, uint(courseID)); errResp != nil {
		return errResp
	}

	var req ExamRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.PassMarks > req.TotalMarks {
		return response.FieldValidationError(c, "pass_marks", "Pass marks cannot exceed total marks")
	}

	exam := model.Exam{
		CourseID:        uint(courseID),
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		PassMarks:       req.PassMarks,
		IsPublished:     req.IsPublished,
	}
	if err := h.db.Create(&exam).Error; err != nil {
		return response.InternalServerError(c, "Failed to create exam")
	}

	return response.Created(c, exam)
}

// ListForCourse returns the exams of a course. Students only see published ones.
func (h *ExamHandler) ListForCourse(c *fiber.Ctx) error {
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

	var exams []model.Exam
	if err := query.Order("created_at ASC").Find(&exams).Error; err != nil {
		return response.InternalServerError(c, "Failed to list exams")
	}

	return response.Success(c, exams)
}

// Get returns an exam with its questions. Correct answers are never
// serialized, so students can take the exam from this payload.
func (h *ExamHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid exam id")
	}

	var exam model.Exam
	err = h.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("questions.order ASC")
	}).First(&exam, uint(id)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Exam not found")
		}
		return response.InternalServerError(c, "Failed to load exam")
	}

	if !exam.IsPublished && !user.IsStaff() {
		return response.NotFound(c, "Exam not found")
	}

	return response.Success(c, exam)
}

// Update modifies an exam
func (h *ExamHandler) Update(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid exam id")
	}

	var exam model.Exam
	if err := h.db.First(&exam, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Exam not found")
		}
		return response.InternalServerError(c, "Failed to load exam")
	}

	if errResp := h.requireOwnership(c, exam.CourseID); errResp != nil {
		return errResp
	}

	var req ExamRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.PassMarks > req.TotalMarks {
		return response.FieldValidationError(c, "pass_marks", "Pass marks cannot exceed total marks")
	}

	updates := map[string]interface{}{
		"title":            req.Title,
		"description":      req.Description,
		"duration_minutes": req.DurationMinutes,
		"total_marks":      req.TotalMarks,
		"pass_marks":       req.PassMarks,
		"is_published":     req.IsPublished,
	}
	if err := h.db.Model(&exam).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to update exam")
	}

	if err := h.db.First(&exam, exam.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to reload exam")
	}
	return response.SuccessWithMessage(c, "Exam updated", exam)
}

// Delete removes an exam and its questions
func (h *ExamHandler) Delete(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid exam id")
	}

	var exam model.Exam
	if err := h.db.First(&exam, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Exam not found")
		}
		return response.InternalServerError(c, "Failed to load exam")
	}

	if errResp := h.requireOwnership(c, exam.CourseID); errResp != nil {
		return errResp
	}

	if err := h.db.Delete(&exam).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete exam")
	}

	return response.SuccessWithMessage(c, "Exam deleted", nil)
}

// AddQuestion adds a question to an exam
func (h *ExamHandler) AddQuestion(c *fiber.Ctx) error {
	examID, err := strconv.ParseUint(c.Params("examId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid exam id")
	}

	var exam model.Exam
	if err := h.db.First(&exam, uint(examID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Exam not found")
		}
		return response.InternalServerError(c, "Failed to load exam")
	}

	if errResp := h.requireOwnership(c, exam.CourseID); errResp != nil {
		return errResp
	}

	var req QuestionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}
	if req.CorrectIndex >= len(req.Options) {
		return response.FieldValidationError(c, "correct_index", "Correct index must point at one of the options")
	}

	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		return response.InternalServerError(c, "Failed to encode options")
	}

	question := model.Question{
		ExamID:       exam.ID,
		Text:         req.Text,
		Options:      datatypes.JSON(optionsJSON),
		CorrectIndex: req.CorrectIndex,
		Marks:        req.Marks,
		Order:        req.Order,
	}
	if err := h.db.Create(&question).Error; err != nil {
		return response.InternalServerError(c, "Failed to create question")
	}

	return response.Created(c, question)
}

// DeleteQuestion removes a question from an exam
func (h *ExamHandler) DeleteQuestion(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid question id")
	}

	var question model.Question
	if err := h.db.Preload("Exam").First(&question, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Question not found")
		}
		return response.InternalServerError(c, "Failed to load question")
	}

	if errResp := h.requireOwnership(c, question.Exam.CourseID); errResp != nil {
		return errResp
	}

	if err := h.db.Delete(&question).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete question")
	}

	return response.SuccessWithMessage(c, "Question deleted", nil)
}

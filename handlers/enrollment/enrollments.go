package enrollment

import (
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// EnrollmentHandler handles enrollment and learning progress endpoints
type EnrollmentHandler struct {
	db            *gorm.DB
	validator     *validation.Validator
	reconciler    *services.EnrollmentReconciler
	notifications *services.NotificationService
	email         *services.EmailService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(db *gorm.DB) *EnrollmentHandler {
	return &EnrollmentHandler{
		db:            db,
		validator:     validation.NewValidator(),
		reconciler:    services.NewEnrollmentReconciler(db),
		notifications: services.NewNotificationService(db),
		email:         services.NewEmailService(),
	}
}

// CompleteLessonRequest represents the lesson completion request body
type CompleteLessonRequest struct {
	TimeSpentSeconds int `json:"time_spent_seconds" validate:"gte=0"`
}

// Enroll enrolls the authenticated student in a free published course.
// Paid courses go through checkout instead.
func (h *EnrollmentHandler) Enroll(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	err = h.db.Where("id = ? AND status = ?", uint(courseID), model.CourseStatusPublished).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if course.IsPaid {
		return response.BadRequest(c, "This course requires payment. Use the checkout endpoint.")
	}

	var existing model.Enrollment
	err = h.db.Where("student_id = ? AND course_id = ?", user.ID, course.ID).First(&existing).Error
	if err == nil {
		return response.Conflict(c, "You are already enrolled in this course")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to check enrollment")
	}

	enrollment := model.Enrollment{
		StudentID:     user.ID,
		CourseID:      course.ID,
		EnrolledAt:    time.Now(),
		Status:        model.EnrollmentStatusActive,
		PaymentStatus: model.EnrollmentPaymentFree,
	}
	if err := h.db.Create(&enrollment).Error; err != nil {
		return response.InternalServerError(c, "Failed to create enrollment")
	}

	return response.Created(c, enrollment)
}

// ListMine returns the authenticated student's enrollments
func (h *EnrollmentHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var enrollments []model.Enrollment
	err := h.db.Preload("Course").
		Where("student_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list enrollments")
	}

	return response.Success(c, enrollments)
}

// GetProgress returns the enrollment plus per-lesson completion for a course
func (h *EnrollmentHandler) GetProgress(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	courseID, err := strconv.ParseUint(c.Params("courseId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var enrollment model.Enrollment
	err = h.db.Where("student_id = ? AND course_id = ?", userID, uint(courseID)).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "You are not enrolled in this course")
		}
		return response.InternalServerError(c, "Failed to load enrollment")
	}

	var lessonProgress []model.LessonProgress
	err = h.db.Where("user_id = ? AND course_id = ?", userID, uint(courseID)).
		Find(&lessonProgress).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load lesson progress")
	}

	return response.Success(c, fiber.Map{
		"enrollment": enrollment,
		"lessons":    lessonProgress,
	})
}

// CompleteLesson marks a published lesson as completed for the authenticated
// student and immediately reconciles the enrollment's progress from the
// completion records.
func (h *EnrollmentHandler) CompleteLesson(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	lessonID, err := strconv.ParseUint(c.Params("lessonId"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid lesson id")
	}

	var req CompleteLessonRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			return response.ValidationError(c, err)
		}
	}

	var lesson model.Lesson
	err = h.db.Where("id = ? AND is_published = ?", uint(lessonID), true).First(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to load lesson")
	}

	var enrollment model.Enrollment
	err = h.db.Where("student_id = ? AND course_id = ?", user.ID, lesson.CourseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.Forbidden(c, "You are not enrolled in this course")
		}
		return response.InternalServerError(c, "Failed to load enrollment")
	}

	wasCompleted := enrollment.Status == model.EnrollmentStatusCompleted

	now := time.Now()
	var progress model.LessonProgress
	err = h.db.Where("user_id = ? AND lesson_id = ?", user.ID, lesson.ID).First(&progress).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		progress = model.LessonProgress{
			UserID:           user.ID,
			LessonID:         lesson.ID,
			CourseID:         lesson.CourseID,
			IsCompleted:      true,
			CompletedAt:      &now,
			TimeSpentSeconds: req.TimeSpentSeconds,
		}
		if err := h.db.Create(&progress).Error; err != nil {
			return response.InternalServerError(c, "Failed to record completion")
		}
	case err != nil:
		return response.InternalServerError(c, "Failed to load lesson progress")
	default:
		updates := map[string]interface{}{
			"time_spent_seconds": progress.TimeSpentSeconds + req.TimeSpentSeconds,
		}
		if !progress.IsCompleted {
			updates["is_completed"] = true
			updates["completed_at"] = now
		}
		if err := h.db.Model(&progress).Updates(updates).Error; err != nil {
			return response.InternalServerError(c, "Failed to record completion")
		}
	}

	updated, err := h.reconciler.ReconcilePair(c.Context(), user.ID, lesson.CourseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to update progress")
	}

	if !wasCompleted && updated.Status == model.EnrollmentStatusCompleted {
		var course model.Course
		if err := h.db.First(&course, lesson.CourseID).Error; err == nil {
			h.notifications.NotifyEnrollmentCompleted(c.Context(), updated, course.Title)
			if err := h.email.SendCourseCompleted(user.Email, user.Name, course.Title); err != nil {
				log.Printf("Failed to email completion notice to user %d: %v", user.ID, err)
			}
		}
	}

	return response.SuccessWithMessage(c, "Lesson completed", fiber.Map{
		"enrollment": updated,
	})
}

// Reconcile recomputes one enrollment from its completion records. Admin only.
func (h *EnrollmentHandler) Reconcile(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid enrollment id")
	}

	var enrollment model.Enrollment
	if err := h.db.First(&enrollment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Enrollment not found")
		}
		return response.InternalServerError(c, "Failed to load enrollment")
	}

	updated, err := h.reconciler.ReconcilePair(c.Context(), enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to reconcile enrollment")
	}

	return response.SuccessWithMessage(c, "Enrollment reconciled", updated)
}

// ReconcileAll sweeps every enrollment and reports the summary. Admin only.
func (h *EnrollmentHandler) ReconcileAll(c *fiber.Ctx) error {
	summary, err := h.reconciler.ReconcileAll(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Reconciliation sweep failed")
	}

	return response.SuccessWithMessage(c, "Reconciliation complete", summary)
}

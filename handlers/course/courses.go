package course

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

// CourseHandler handles course catalog endpoints
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the course creation request body
type CreateCourseRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	IsPaid      bool     `json:"is_paid"`
	Price       float64  `json:"price" validate:"gte=0"`
	SalePrice   *float64 `json:"sale_price" validate:"omitempty,gt=0"`
}

// UpdateCourseRequest represents the course update request body
type UpdateCourseRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
	IsPaid      *bool    `json:"is_paid"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	SalePrice   *float64 `json:"sale_price" validate:"omitempty,gt=0"`
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// canManage reports whether the user may modify the course
func canManage(user *model.User, course *model.Course) bool {
	return user.Role == model.RoleAdmin || course.InstructorID == user.ID
}

// List returns the published course catalog with pagination
func (h *CourseHandler) List(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.Course{}).Where("status = ?", model.CourseStatusPublished)

	if search := validation.SanitizeString(c.Query("search")); search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var courses []model.Course
	err := query.Preload("Instructor").
		Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&courses).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}

	return response.Paginated(c, courses, pagination)
}

// Get returns a single course with its chapters and lessons
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	err = h.db.Preload("Instructor").
		Preload("Chapters", func(db *gorm.DB) *gorm.DB {
			return db.Order("chapters.order ASC")
		}).
		Preload("Chapters.Lessons", func(db *gorm.DB) *gorm.DB {
			return db.Order("lessons.order ASC")
		}).
		First(&course, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	// Drafts are only visible to their owner and admins
	if course.Status != model.CourseStatusPublished {
		user, ok := middleware.GetUser(c)
		if !ok || !canManage(user, &course) {
			return response.NotFound(c, "Course not found")
		}
	}

	return response.Success(c, course)
}

// ListMine returns the courses owned by the authenticated instructor
func (h *CourseHandler) ListMine(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var courses []model.Course
	query := h.db.Order("created_at DESC")
	if user.Role != model.RoleAdmin {
		query = query.Where("instructor_id = ?", user.ID)
	}
	if err := query.Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}

	return response.Success(c, courses)
}

// Create creates a new draft course owned by the authenticated instructor
func (h *CourseHandler) Create(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Title = validation.SanitizeString(req.Title)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	course := model.Course{
		InstructorID: user.ID,
		Title:        req.Title,
		Description:  req.Description,
		Status:       model.CourseStatusDraft,
		IsPaid:       req.IsPaid,
		Price:        req.Price,
		SalePrice:    req.SalePrice,
	}

	if err := course.ValidatePricing(); err != nil {
		return response.FieldValidationError(c, "price", err.Error())
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, course)
}

// Update modifies a course's details
func (h *CourseHandler) Update(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if !canManage(user, &course) {
		return response.Forbidden(c, "You do not own this course")
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	if req.Title != nil {
		course.Title = validation.SanitizeString(*req.Title)
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.IsPaid != nil {
		course.IsPaid = *req.IsPaid
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.SalePrice != nil {
		course.SalePrice = req.SalePrice
	}

	if err := course.ValidatePricing(); err != nil {
		return response.FieldValidationError(c, "price", err.Error())
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	return response.SuccessWithMessage(c, "Course updated", course)
}

// Publish moves a draft course to the published catalog. Pricing must be
// valid and the course must contain at least one published lesson.
func (h *CourseHandler) Publish(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if !canManage(user, &course) {
		return response.Forbidden(c, "You do not own this course")
	}

	if err := course.ValidatePricing(); err != nil {
		return response.FieldValidationError(c, "price", err.Error())
	}

	var publishedLessons int64
	err = h.db.Model(&model.Lesson{}).
		Where("course_id = ? AND is_published = ?", course.ID, true).
		Count(&publishedLessons).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to check course content")
	}
	if publishedLessons == 0 {
		return response.FieldValidationError(c, "lessons", "A course needs at least one published lesson before it can be published")
	}

	if err := h.db.Model(&course).Update("status", model.CourseStatusPublished).Error; err != nil {
		return response.InternalServerError(c, "Failed to publish course")
	}

	course.Status = model.CourseStatusPublished
	return response.SuccessWithMessage(c, "Course published", course)
}

// Archive removes a course from the catalog without deleting it
func (h *CourseHandler) Archive(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	if !canManage(user, &course) {
		return response.Forbidden(c, "You do not own this course")
	}

	if err := h.db.Model(&course).Update("status", model.CourseStatusArchived).Error; err != nil {
		return response.InternalServerError(c, "Failed to archive course")
	}

	course.Status = model.CourseStatusArchived
	return response.SuccessWithMessage(c, "Course archived", course)
}

// Delete soft-deletes a course. Admin only; enrollments cascade.
func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	result := h.db.Delete(&model.Course{}, id)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Course not found")
	}

	return response.SuccessWithMessage(c, "Course deleted", nil)
}

package payment

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/services/gateway"
	"github.com/learnhub/lms-api/utils/middleware"
	"github.com/learnhub/lms-api/utils/response"
	"github.com/learnhub/lms-api/utils/validation"
	"gorm.io/gorm"
)

// PaymentHandler handles checkout, gateway callbacks and refunds
type PaymentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	payments  *services.PaymentService
	email     *services.EmailService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		db:        db,
		validator: validation.NewValidator(),
		payments:  payments,
		email:     services.NewEmailService(),
	}
}

// CheckoutRequest represents the checkout request body
type CheckoutRequest struct {
	CourseID uint `json:"course_id" validate:"required"`
}

// CallbackRequest is the gateway's notification payload. The status field
// discriminates which event variant this is; unknown statuses are rejected at
// the boundary before any lookup happens.
type CallbackRequest struct {
	TransactionID string  `json:"tran_id" form:"tran_id" validate:"required"`
	Status        string  `json:"status" form:"status" validate:"required,oneof=VALID VALIDATED FAILED CANCELLED"`
	BankTranID    string  `json:"bank_tran_id" form:"bank_tran_id"`
	CardType      string  `json:"card_type" form:"card_type"`
	Amount        float64 `json:"amount" form:"amount" validate:"gte=0"`
}

// RefundRequest represents the admin refund request body
type RefundRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Reason string  `json:"reason" validate:"required,min=3,max=500"`
	Notes  string  `json:"notes" validate:"max=1000"`
}

// mapServiceError translates payment service errors to HTTP responses
func mapServiceError(c *fiber.Ctx, err error) error {
	var fieldErr *services.FieldError
	var transitionErr *model.InvalidTransitionError

	switch {
	case errors.As(err, &fieldErr):
		return response.FieldValidationError(c, fieldErr.Field, fieldErr.Message)
	case errors.As(err, &transitionErr):
		return response.UnprocessableEntity(c, transitionErr.Error())
	case errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrRefundNotFound),
		errors.Is(err, services.ErrCourseNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, services.ErrCourseNotPaid):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrAlreadyEnrolled),
		errors.Is(err, services.ErrRefundNotAllowed),
		errors.Is(err, services.ErrRefundPending):
		return response.Conflict(c, err.Error())
	case errors.Is(err, gateway.ErrUnavailable):
		return response.BadGateway(c, "Payment gateway is unavailable. Please try again.")
	case errors.Is(err, gateway.ErrRejected):
		return response.BadGateway(c, "Payment gateway rejected the request")
	default:
		return response.InternalServerError(c, "Payment operation failed")
	}
}

// Checkout opens a gateway session for a paid course
func (h *PaymentHandler) Checkout(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	payment, session, err := h.payments.InitiateCheckout(c.Context(), user, req.CourseID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.Created(c, fiber.Map{
		"payment":      payment,
		"redirect_url": session.RedirectURL,
	})
}

// Callback receives the gateway's payment notification. The gateway retries
// delivery, so re-applying an already observed event returns success.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var req CallbackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid callback payload")
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	var kind services.GatewayEventKind
	switch req.Status {
	case "VALID", "VALIDATED":
		kind = services.GatewayEventSuccess
	case "FAILED":
		kind = services.GatewayEventFailed
	case "CANCELLED":
		kind = services.GatewayEventCancelled
	}

	event := services.GatewayEvent{
		Kind:          kind,
		BankTranID:    req.BankTranID,
		PaymentMethod: req.CardType,
		Amount:        req.Amount,
		Raw:           c.Body(),
	}

	payment, err := h.payments.ApplyGatewayEvent(c.Context(), req.TransactionID, event)
	if err != nil {
		return mapServiceError(c, err)
	}

	if payment.Status == model.PaymentStatusSuccess {
		h.sendReceipt(payment)
	}

	return response.Success(c, payment)
}

// sendReceipt emails a payment receipt. Delivery failure never affects the
// callback response; the gateway only cares that we acknowledged the event.
func (h *PaymentHandler) sendReceipt(payment *model.Payment) {
	var student model.User
	if err := h.db.First(&student, payment.StudentID).Error; err != nil {
		return
	}
	var course model.Course
	if err := h.db.First(&course, payment.CourseID).Error; err != nil {
		return
	}
	if err := h.email.SendPaymentReceipt(student.Email, student.Name, payment, course.Title); err != nil {
		log.Printf("Failed to email receipt for payment %d: %v", payment.ID, err)
	}
}

// ListMine returns the authenticated student's payments
func (h *PaymentHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var payments []model.Payment
	err := h.db.Where("student_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list payments")
	}

	return response.Success(c, payments)
}

// Get returns a single payment. Students see their own; admins see any.
func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid payment id")
	}

	var payment model.Payment
	if err := h.db.First(&payment, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Payment not found")
		}
		return response.InternalServerError(c, "Failed to load payment")
	}

	if user.Role != model.RoleAdmin && payment.StudentID != user.ID {
		return response.NotFound(c, "Payment not found")
	}

	return response.Success(c, payment)
}

// ListAll returns all payments with pagination and optional status filter.
// Admin only.
func (h *PaymentHandler) ListAll(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	query := h.db.Model(&model.Payment{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if refundStatus := c.Query("refund_status"); refundStatus != "" {
		query = query.Where("refund_status = ?", refundStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count payments")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var payments []model.Payment
	err := query.Order("created_at DESC").
		Limit(pagination.PerPage).
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Find(&payments).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to list payments")
	}

	return response.Paginated(c, payments, pagination)
}

// RequestRefund initiates a refund for a successful payment. Admin only.
// Validation failures reject before anything is written.
func (h *PaymentHandler) RequestRefund(c *fiber.Ctx) error {
	admin, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid payment id")
	}

	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Reason = validation.SanitizeString(req.Reason)

	if err := h.validator.ValidateStruct(&req); err != nil {
		return response.ValidationError(c, err)
	}

	payment, err := h.payments.RequestRefund(c.Context(), uint(id), services.RefundRequest{
		Amount:  req.Amount,
		Reason:  req.Reason,
		Notes:   req.Notes,
		AdminID: admin.ID,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.SuccessWithMessage(c, "Refund initiated", payment)
}

// CheckRefundStatus polls the gateway for the refund's current state and
// writes back any change. Admin only.
func (h *PaymentHandler) CheckRefundStatus(c *fiber.Ctx) error {
	refundRefID := c.Params("refundRefId")
	if refundRefID == "" {
		return response.BadRequest(c, "Missing refund reference id")
	}

	payment, err := h.payments.CheckRefundStatus(c.Context(), refundRefID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return response.Success(c, payment)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services/gateway"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCourseNotFound   = errors.New("course not found")
	ErrCourseNotPaid    = errors.New("course does not require payment")
	ErrAlreadyEnrolled  = errors.New("student is already enrolled in this course")
	ErrRefundNotAllowed = errors.New("refund requires a successful payment")
	ErrRefundPending    = errors.New("a refund has already been requested for this payment")
	ErrRefundNotFound   = errors.New("no refund matches that reference")
)

// FieldError is a validation error tied to a single request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// PaymentGateway is the slice of the gateway client the payment service uses
type PaymentGateway interface {
	CreateSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error)
	InitiateRefund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundInitiation, error)
	QueryRefund(ctx context.Context, refundRefID string) (*gateway.RefundState, error)
}

// GatewayEventKind discriminates validated gateway callback payloads
type GatewayEventKind string

const (
	GatewayEventSuccess   GatewayEventKind = "success"
	GatewayEventFailed    GatewayEventKind = "failed"
	GatewayEventCancelled GatewayEventKind = "cancelled"
)

// GatewayEvent is a gateway callback after boundary validation. Raw carries
// the original payload for auditing.
type GatewayEvent struct {
	Kind          GatewayEventKind
	BankTranID    string
	PaymentMethod string
	Amount        float64
	Raw           []byte
}

// PaymentService governs the payment lifecycle: checkout initiation, gateway
// callbacks and the refund sub-flow. Status transitions go through an
// explicit transition table; lifecycle timestamps are written exactly once,
// so duplicate gateway deliveries are harmless.
type PaymentService struct {
	db      *gorm.DB
	gateway PaymentGateway
	now     func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(db *gorm.DB, gw PaymentGateway) *PaymentService {
	return &PaymentService{
		db:      db,
		gateway: gw,
		now:     time.Now,
	}
}

// InitiateCheckout opens a gateway session for a paid course and records a
// pending payment for it.
func (s *PaymentService) InitiateCheckout(ctx context.Context, student *model.User, courseID uint) (*model.Payment, *gateway.CheckoutSession, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", courseID, model.CourseStatusPublished).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCourseNotFound
		}
		return nil, nil, err
	}
	if !course.IsPaid {
		return nil, nil, ErrCourseNotPaid
	}

	var existing model.Enrollment
	err = s.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ? AND payment_status = ?", student.ID, courseID, model.EnrollmentPaymentPaid).
		First(&existing).Error
	if err == nil {
		return nil, nil, ErrAlreadyEnrolled
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	amount := course.EffectivePrice()
	transactionID := uuid.New().String()

	session, err := s.gateway.CreateSession(ctx, gateway.CheckoutRequest{
		TransactionID: transactionID,
		Amount:        amount,
		Currency:      "BDT",
		ProductName:   course.Title,
		CustomerName:  student.Name,
		CustomerEmail: student.Email,
	})
	if err != nil {
		return nil, nil, err
	}

	payment := &model.Payment{
		TransactionID: transactionID,
		StudentID:     student.ID,
		CourseID:      courseID,
		Amount:        amount,
		Currency:      "BDT",
		Status:        model.PaymentStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return payment, session, nil
}

// eventTarget maps a callback kind to its target payment status
func eventTarget(kind GatewayEventKind) (model.PaymentStatus, error) {
	switch kind {
	case GatewayEventSuccess:
		return model.PaymentStatusSuccess, nil
	case GatewayEventFailed:
		return model.PaymentStatusFailed, nil
	case GatewayEventCancelled:
		return model.PaymentStatusCancelled, nil
	default:
		return "", &FieldError{Field: "status", Message: "unknown gateway event kind"}
	}
}

// ApplyGatewayEvent applies a validated gateway callback to the payment
// identified by its transaction id. Re-delivery of an event the payment has
// already observed is a no-op; an illegal transition is rejected.
func (s *PaymentService) ApplyGatewayEvent(ctx context.Context, transactionID string, event GatewayEvent) (*model.Payment, error) {
	target, err := eventTarget(event.Kind)
	if err != nil {
		return nil, err
	}

	var payment model.Payment
	err = s.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	// Duplicate delivery: the first transition already stamped everything.
	if payment.Status == target {
		return &payment, nil
	}

	if !model.CanTransitionPayment(payment.Status, target) {
		return nil, &model.InvalidTransitionError{From: string(payment.Status), To: string(target)}
	}

	now := s.now()
	updates := map[string]interface{}{
		"status": target,
	}
	if event.BankTranID != "" {
		updates["gateway_ref"] = event.BankTranID
	}
	if event.PaymentMethod != "" {
		updates["payment_method"] = event.PaymentMethod
	}
	if len(event.Raw) > 0 {
		updates["gateway_data"] = datatypes.JSON(event.Raw)
	}

	switch target {
	case model.PaymentStatusSuccess:
		if payment.CompletedAt == nil {
			updates["completed_at"] = now
		}
	case model.PaymentStatusFailed, model.PaymentStatusCancelled:
		if payment.FailedAt == nil {
			updates["failed_at"] = now
		}
	}

	if err := s.db.WithContext(ctx).Model(&payment).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}

	if target == model.PaymentStatusSuccess {
		if err := s.activateEnrollment(ctx, &payment); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// activateEnrollment creates or upgrades the enrollment once a payment
// settles, and links the payment to it.
func (s *PaymentService) activateEnrollment(ctx context.Context, payment *model.Payment) error {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", payment.StudentID, payment.CourseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		enrollment = model.Enrollment{
			StudentID:     payment.StudentID,
			CourseID:      payment.CourseID,
			EnrolledAt:    s.now(),
			Status:        model.EnrollmentStatusActive,
			PaymentStatus: model.EnrollmentPaymentPaid,
			PaymentAmount: payment.Amount,
		}
		if err := s.db.WithContext(ctx).Create(&enrollment).Error; err != nil {
			return fmt.Errorf("failed to create enrollment: %w", err)
		}
	} else if err != nil {
		return err
	} else {
		err := s.db.WithContext(ctx).Model(&enrollment).Updates(map[string]interface{}{
			"payment_status": model.EnrollmentPaymentPaid,
			"payment_amount": payment.Amount,
		}).Error
		if err != nil {
			return fmt.Errorf("failed to update enrollment %d: %w", enrollment.ID, err)
		}
	}

	return s.db.WithContext(ctx).Model(payment).Update("enrollment_id", enrollment.ID).Error
}

// RefundRequest describes an admin-initiated refund
type RefundRequest struct {
	Amount  float64
	Reason  string
	Notes   string
	AdminID uint
}

// RequestRefund validates and initiates a refund for a successful payment.
// Validation failures reject the request before any field is mutated.
func (s *PaymentService) RequestRefund(ctx context.Context, paymentID uint, req RefundRequest) (*model.Payment, error) {
	var payment model.Payment
	err := s.db.WithContext(ctx).First(&payment, paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if req.Reason == "" {
		return nil, &FieldError{Field: "reason", Message: "refund reason is required"}
	}
	if req.Amount <= 0 {
		return nil, &FieldError{Field: "amount", Message: "refund amount must be greater than zero"}
	}
	if req.Amount > payment.Amount {
		return nil, &FieldError{Field: "amount", Message: "refund amount cannot exceed the payment amount"}
	}
	if payment.Status != model.PaymentStatusSuccess {
		return nil, ErrRefundNotAllowed
	}
	if payment.RefundRequested() {
		return nil, ErrRefundPending
	}

	initiation, err := s.gateway.InitiateRefund(ctx, gateway.RefundRequest{
		BankTranID: payment.GatewayRef,
		Amount:     req.Amount,
		Remarks:    req.Reason,
	})
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"refund_status":       model.RefundStatusInitiated,
		"refund_amount":       req.Amount,
		"refund_reason":       req.Reason,
		"refund_notes":        req.Notes,
		"refund_ref_id":       initiation.RefundRefID,
		"refund_requested_by": req.AdminID,
	}
	if err := s.db.WithContext(ctx).Model(&payment).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}

	if err := s.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// mapGatewayRefundStatus translates the gateway's refund status strings into
// our refund sub-flow states
func mapGatewayRefundStatus(status string) (model.RefundStatus, error) {
	switch status {
	case "initiated":
		return model.RefundStatusInitiated, nil
	case "processing", "pending":
		return model.RefundStatusProcessing, nil
	case "success", "refunded":
		return model.RefundStatusRefunded, nil
	case "failed":
		return model.RefundStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown gateway refund status %q", status)
	}
}

// CheckRefundStatus polls the gateway for the refund identified by its
// reference id and writes back the latest state if it differs from what is
// stored. When the refund reaches its terminal refunded state, the parent
// payment is forced to refunded and its write-once refund timestamp is set.
func (s *PaymentService) CheckRefundStatus(ctx context.Context, refundRefID string) (*model.Payment, error) {
	var payment model.Payment
	err := s.db.WithContext(ctx).Where("refund_ref_id = ?", refundRefID).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefundNotFound
		}
		return nil, err
	}

	state, err := s.gateway.QueryRefund(ctx, refundRefID)
	if err != nil {
		// Stored state is left unchanged; the caller retries later.
		return nil, err
	}

	latest, err := mapGatewayRefundStatus(state.Status)
	if err != nil {
		return nil, err
	}

	// Nothing changed: no write.
	if latest == payment.RefundStatus {
		return &payment, nil
	}

	if !model.CanTransitionRefund(payment.RefundStatus, latest) {
		return nil, &model.InvalidTransitionError{From: string(payment.RefundStatus), To: string(latest)}
	}

	updates := map[string]interface{}{
		"refund_status": latest,
	}
	if latest == model.RefundStatusRefunded {
		if !model.CanTransitionPayment(payment.Status, model.PaymentStatusRefunded) {
			return nil, &model.InvalidTransitionError{From: string(payment.Status), To: string(model.PaymentStatusRefunded)}
		}
		updates["status"] = model.PaymentStatusRefunded
		if payment.RefundedAt == nil {
			updates["refunded_at"] = s.now()
		}
		if payment.RefundedBy == nil && payment.RefundRequestedBy != nil {
			updates["refunded_by"] = *payment.RefundRequestedBy
		}
	}

	if err := s.db.WithContext(ctx).Model(&payment).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update payment %d: %w", payment.ID, err)
	}

	if err := s.db.WithContext(ctx).First(&payment, payment.ID).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeGateway is an in-memory PaymentGateway for tests
type fakeGateway struct {
	createSessionErr error
	initiateErr      error
	queryErr         error

	refundStatus string
	queryCalls   int
}

func (f *fakeGateway) CreateSession(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	if f.createSessionErr != nil {
		return nil, f.createSessionErr
	}
	return &gateway.CheckoutSession{
		SessionKey:  "sess-" + req.TransactionID,
		RedirectURL: "https://gateway.test/pay/" + req.TransactionID,
		Status:      "SUCCESS",
	}, nil
}

func (f *fakeGateway) InitiateRefund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundInitiation, error) {
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &gateway.RefundInitiation{RefundRefID: "ref-001", Status: "initiated"}, nil
}

func (f *fakeGateway) QueryRefund(ctx context.Context, refundRefID string) (*gateway.RefundState, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &gateway.RefundState{RefundRefID: refundRefID, Status: f.refundStatus}, nil
}

func newTestPaymentService(t *testing.T) (*PaymentService, *fakeGateway, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	gw := &fakeGateway{}
	svc := NewPaymentService(db, gw)
	return svc, gw, db
}

func seedPaidCourse(t *testing.T, db *gorm.DB, price float64) (*model.User, *model.Course) {
	t.Helper()
	course, _ := seedCourse(t, db, 3)
	require.NoError(t, db.Model(course).Updates(map[string]interface{}{
		"is_paid": true,
		"price":   price,
	}).Error)
	course.IsPaid = true
	course.Price = price

	seedSeq++
	student := seedStudent(t, db, fmt.Sprintf("buyer-%d@test.local", seedSeq))
	return student, course
}

func seedSuccessfulPayment(t *testing.T, svc *PaymentService, db *gorm.DB, student *model.User, course *model.Course) *model.Payment {
	t.Helper()
	payment, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	require.NoError(t, err)

	paid, err := svc.ApplyGatewayEvent(context.Background(), payment.TransactionID, GatewayEvent{
		Kind:          GatewayEventSuccess,
		BankTranID:    "bank-123",
		PaymentMethod: "VISA",
		Amount:        payment.Amount,
	})
	require.NoError(t, err)
	return paid
}

func TestInitiateCheckout(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)

	payment, session, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Equal(t, 500.0, payment.Amount)
	assert.Equal(t, "BDT", payment.Currency)
	assert.NotEmpty(t, payment.TransactionID)
	assert.Contains(t, session.RedirectURL, payment.TransactionID)
}

func TestInitiateCheckoutFreeCourse(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	course, _ := seedCourse(t, db, 3)
	student := seedStudent(t, db, "free@test.local")

	_, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	assert.ErrorIs(t, err, ErrCourseNotPaid)
}

func TestInitiateCheckoutGatewayDownWritesNothing(t *testing.T) {
	svc, gw, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	gw.createSessionErr = gateway.ErrUnavailable

	_, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	var count int64
	require.NoError(t, db.Model(&model.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestApplyGatewayEventSuccess(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)

	payment, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	require.NoError(t, err)

	updated, err := svc.ApplyGatewayEvent(context.Background(), payment.TransactionID, GatewayEvent{
		Kind:          GatewayEventSuccess,
		BankTranID:    "bank-123",
		PaymentMethod: "VISA",
		Amount:        500,
		Raw:           []byte(`{"status":"VALID"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusSuccess, updated.Status)
	assert.Equal(t, "bank-123", updated.GatewayRef)
	assert.Equal(t, "VISA", updated.PaymentMethod)
	require.NotNil(t, updated.CompletedAt)
	assert.Nil(t, updated.FailedAt)

	// A paid enrollment exists and points back to the payment
	var enrollment model.Enrollment
	require.NoError(t, db.Where("student_id = ? AND course_id = ?", student.ID, course.ID).First(&enrollment).Error)
	assert.Equal(t, model.EnrollmentPaymentPaid, enrollment.PaymentStatus)
	assert.Equal(t, 500.0, enrollment.PaymentAmount)
	require.NotNil(t, updated.EnrollmentID)
	assert.Equal(t, enrollment.ID, *updated.EnrollmentID)
}

func TestApplyGatewayEventDuplicateDeliveryKeepsTimestamp(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)
	firstCompletedAt := *paid.CompletedAt

	// Same event delivered again later
	svc.now = func() time.Time { return firstCompletedAt.Add(1 * time.Hour) }

	again, err := svc.ApplyGatewayEvent(context.Background(), paid.TransactionID, GatewayEvent{
		Kind:       GatewayEventSuccess,
		BankTranID: "bank-123",
	})
	require.NoError(t, err)
	require.NotNil(t, again.CompletedAt)
	assert.WithinDuration(t, firstCompletedAt, *again.CompletedAt, time.Second)
}

func TestApplyGatewayEventIllegalTransition(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	_, err := svc.ApplyGatewayEvent(context.Background(), paid.TransactionID, GatewayEvent{
		Kind: GatewayEventFailed,
	})

	var transitionErr *model.InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, "success", transitionErr.From)
	assert.Equal(t, "failed", transitionErr.To)
}

func TestApplyGatewayEventCancelled(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)

	payment, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	require.NoError(t, err)

	updated, err := svc.ApplyGatewayEvent(context.Background(), payment.TransactionID, GatewayEvent{
		Kind: GatewayEventCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCancelled, updated.Status)
	assert.NotNil(t, updated.FailedAt)
	assert.Nil(t, updated.CompletedAt)
}

func TestRequestRefundValidation(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	cases := []struct {
		name  string
		req   RefundRequest
		field string
	}{
		{"missing reason", RefundRequest{Amount: 100, AdminID: 1}, "reason"},
		{"zero amount", RefundRequest{Amount: 0, Reason: "duplicate charge", AdminID: 1}, "amount"},
		{"negative amount", RefundRequest{Amount: -5, Reason: "duplicate charge", AdminID: 1}, "amount"},
		{"amount exceeds payment", RefundRequest{Amount: 600, Reason: "duplicate charge", AdminID: 1}, "amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RequestRefund(context.Background(), paid.ID, tc.req)
			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tc.field, fieldErr.Field)

			// Rejected before mutation: no refund fields are set
			var got model.Payment
			require.NoError(t, db.First(&got, paid.ID).Error)
			assert.False(t, got.RefundRequested())
			assert.Empty(t, got.RefundReason)
		})
	}
}

func TestRequestRefundRequiresSuccessfulPayment(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)

	payment, _, err := svc.InitiateCheckout(context.Background(), student, course.ID)
	require.NoError(t, err)

	_, err = svc.RequestRefund(context.Background(), payment.ID, RefundRequest{
		Amount: 100, Reason: "duplicate charge", AdminID: 1,
	})
	assert.ErrorIs(t, err, ErrRefundNotAllowed)

	var got model.Payment
	require.NoError(t, db.First(&got, payment.ID).Error)
	assert.False(t, got.RefundRequested())
}

func TestRequestRefundHappyPath(t *testing.T) {
	svc, _, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	updated, err := svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount:  500,
		Reason:  "course cancelled",
		Notes:   "approved by support ticket 4211",
		AdminID: 42,
	})
	require.NoError(t, err)

	assert.Equal(t, model.RefundStatusInitiated, updated.RefundStatus)
	assert.Equal(t, "ref-001", updated.RefundRefID)
	require.NotNil(t, updated.RefundAmount)
	assert.Equal(t, 500.0, *updated.RefundAmount)
	require.NotNil(t, updated.RefundRequestedBy)
	assert.Equal(t, uint(42), *updated.RefundRequestedBy)
	// The parent payment stays successful until the gateway settles the refund
	assert.Equal(t, model.PaymentStatusSuccess, updated.Status)
	assert.Nil(t, updated.RefundedAt)

	// A second request is rejected while the first is in flight
	_, err = svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount: 100, Reason: "second attempt", AdminID: 42,
	})
	assert.ErrorIs(t, err, ErrRefundPending)
}

func TestRequestRefundGatewayDownWritesNothing(t *testing.T) {
	svc, gw, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)
	gw.initiateErr = gateway.ErrUnavailable

	_, err := svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount: 500, Reason: "course cancelled", AdminID: 42,
	})
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	var got model.Payment
	require.NoError(t, db.First(&got, paid.ID).Error)
	assert.False(t, got.RefundRequested())
}

func TestCheckRefundStatusProgression(t *testing.T) {
	svc, gw, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	_, err := svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount: 500, Reason: "course cancelled", AdminID: 42,
	})
	require.NoError(t, err)

	// Gateway still reports initiated: no change, no write
	gw.refundStatus = "initiated"
	got, err := svc.CheckRefundStatus(context.Background(), "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusInitiated, got.RefundStatus)

	// Gateway moves to processing
	gw.refundStatus = "processing"
	got, err = svc.CheckRefundStatus(context.Background(), "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusProcessing, got.RefundStatus)
	assert.Equal(t, model.PaymentStatusSuccess, got.Status)

	// Gateway settles the refund: parent payment flips to refunded
	gw.refundStatus = "success"
	got, err = svc.CheckRefundStatus(context.Background(), "ref-001")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusRefunded, got.RefundStatus)
	assert.Equal(t, model.PaymentStatusRefunded, got.Status)
	require.NotNil(t, got.RefundedAt)
	require.NotNil(t, got.RefundedBy)
	assert.Equal(t, uint(42), *got.RefundedBy)

	firstRefundedAt := *got.RefundedAt

	// Polling again after settlement changes nothing
	got, err = svc.CheckRefundStatus(context.Background(), "ref-001")
	require.NoError(t, err)
	assert.WithinDuration(t, firstRefundedAt, *got.RefundedAt, time.Second)
}

func TestCheckRefundStatusGatewayDownLeavesStateUnchanged(t *testing.T) {
	svc, gw, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	_, err := svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount: 500, Reason: "course cancelled", AdminID: 42,
	})
	require.NoError(t, err)

	gw.queryErr = gateway.ErrUnavailable
	_, err = svc.CheckRefundStatus(context.Background(), "ref-001")
	assert.ErrorIs(t, err, gateway.ErrUnavailable)

	var got model.Payment
	require.NoError(t, db.First(&got, paid.ID).Error)
	assert.Equal(t, model.RefundStatusInitiated, got.RefundStatus)
	assert.Equal(t, model.PaymentStatusSuccess, got.Status)
}

func TestCheckRefundStatusFailedRefundKeepsPaymentSuccessful(t *testing.T) {
	svc, gw, db := newTestPaymentService(t)
	student, course := seedPaidCourse(t, db, 500)
	paid := seedSuccessfulPayment(t, svc, db, student, course)

	_, err := svc.RequestRefund(context.Background(), paid.ID, RefundRequest{
		Amount: 500, Reason: "course cancelled", AdminID: 42,
	})
	require.NoError(t, err)

	gw.refundStatus = "failed"
	got, err := svc.CheckRefundStatus(context.Background(), "ref-001")
	require.NoError(t, err)

	assert.Equal(t, model.RefundStatusFailed, got.RefundStatus)
	assert.Equal(t, model.PaymentStatusSuccess, got.Status)
	assert.Nil(t, got.RefundedAt)
}

func TestCheckRefundStatusUnknownReference(t *testing.T) {
	svc, _, _ := newTestPaymentService(t)

	_, err := svc.CheckRefundStatus(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, ErrRefundNotFound)
}

package model

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle status of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSuccess   PaymentStatus = "success"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// RefundStatus tracks the refund sub-flow. Empty means no refund requested.
type RefundStatus string

const (
	RefundStatusInitiated  RefundStatus = "initiated"
	RefundStatusProcessing RefundStatus = "processing"
	RefundStatusRefunded   RefundStatus = "refunded"
	RefundStatusFailed     RefundStatus = "failed"
)

// allowedPaymentTransitions defines the valid payment status transitions.
// The key is the current status, the value the set of legal targets.
// Everything not listed here is rejected.
var allowedPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusSuccess,
		PaymentStatusFailed,
		PaymentStatusCancelled,
	},
	PaymentStatusSuccess: {
		PaymentStatusRefunded, // via the refund sub-flow only
	},
	PaymentStatusFailed:    {}, // terminal
	PaymentStatusCancelled: {}, // terminal
	PaymentStatusRefunded:  {}, // terminal
}

// allowedRefundTransitions defines the valid refund sub-flow transitions.
var allowedRefundTransitions = map[RefundStatus][]RefundStatus{
	RefundStatusInitiated: {
		RefundStatusProcessing,
		RefundStatusRefunded,
		RefundStatusFailed,
	},
	RefundStatusProcessing: {
		RefundStatusRefunded,
		RefundStatusFailed,
	},
	RefundStatusRefunded: {}, // terminal
	RefundStatusFailed:   {}, // terminal
}

// CanTransitionPayment checks if a payment status transition is allowed
func CanTransitionPayment(from, to PaymentStatus) bool {
	allowed, exists := allowedPaymentTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionRefund checks if a refund status transition is allowed
func CanTransitionRefund(from, to RefundStatus) bool {
	allowed, exists := allowedRefundTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports an attempted illegal status transition
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// Payment represents a payment record for a course enrollment
type Payment struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
	TransactionID string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_id"`
	StudentID     uint           `gorm:"not null;index" json:"student_id"`
	CourseID      uint           `gorm:"not null;index" json:"course_id"`
	EnrollmentID  *uint          `gorm:"index" json:"enrollment_id,omitempty"`
	Amount        float64        `gorm:"not null" json:"amount"`
	Currency      string         `gorm:"type:varchar(10);default:'BDT'" json:"currency"`
	Status        PaymentStatus  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaymentMethod string         `gorm:"type:varchar(50)" json:"payment_method"`
	GatewayRef    string         `gorm:"type:varchar(100)" json:"gateway_ref"` // bank transaction id from the gateway
	GatewayData   datatypes.JSON `gorm:"type:jsonb" json:"-"`                  // raw callback payload, kept for audits

	// Write-once lifecycle timestamps
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	// Refund sub-flow, only meaningful once a refund has been requested
	RefundStatus      RefundStatus `gorm:"type:varchar(20)" json:"refund_status,omitempty"`
	RefundAmount      *float64     `json:"refund_amount,omitempty"`
	RefundReason      string       `gorm:"type:text" json:"refund_reason,omitempty"`
	RefundNotes       string       `gorm:"type:text" json:"refund_notes,omitempty"`
	RefundRefID       string       `gorm:"type:varchar(100);index" json:"refund_ref_id,omitempty"`
	RefundRequestedBy *uint        `json:"refund_requested_by,omitempty"`
	RefundedAt        *time.Time   `json:"refunded_at,omitempty"`
	RefundedBy        *uint        `json:"refunded_by,omitempty"`

	// Relationships
	Student    User        `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Course     Course      `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Enrollment *Enrollment `gorm:"foreignKey:EnrollmentID" json:"-"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// RefundRequested reports whether a refund has been requested for this payment
func (p *Payment) RefundRequested() bool {
	return p.RefundStatus != ""
}

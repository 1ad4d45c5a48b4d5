package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionPayment(t *testing.T) {
	cases := []struct {
		name    string
		from    PaymentStatus
		to      PaymentStatus
		allowed bool
	}{
		{"pending to success", PaymentStatusPending, PaymentStatusSuccess, true},
		{"pending to failed", PaymentStatusPending, PaymentStatusFailed, true},
		{"pending to cancelled", PaymentStatusPending, PaymentStatusCancelled, true},
		{"pending to refunded", PaymentStatusPending, PaymentStatusRefunded, false},
		{"success to refunded", PaymentStatusSuccess, PaymentStatusRefunded, true},
		{"success to failed", PaymentStatusSuccess, PaymentStatusFailed, false},
		{"success to pending", PaymentStatusSuccess, PaymentStatusPending, false},
		{"failed is terminal", PaymentStatusFailed, PaymentStatusPending, false},
		{"cancelled is terminal", PaymentStatusCancelled, PaymentStatusSuccess, false},
		{"refunded is terminal", PaymentStatusRefunded, PaymentStatusSuccess, false},
		{"unknown from", PaymentStatus("bogus"), PaymentStatusSuccess, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransitionPayment(tc.from, tc.to))
		})
	}
}

func TestCanTransitionRefund(t *testing.T) {
	cases := []struct {
		name    string
		from    RefundStatus
		to      RefundStatus
		allowed bool
	}{
		{"initiated to processing", RefundStatusInitiated, RefundStatusProcessing, true},
		{"initiated to refunded", RefundStatusInitiated, RefundStatusRefunded, true},
		{"initiated to failed", RefundStatusInitiated, RefundStatusFailed, true},
		{"processing to refunded", RefundStatusProcessing, RefundStatusRefunded, true},
		{"processing to failed", RefundStatusProcessing, RefundStatusFailed, true},
		{"processing to initiated", RefundStatusProcessing, RefundStatusInitiated, false},
		{"refunded is terminal", RefundStatusRefunded, RefundStatusProcessing, false},
		{"failed is terminal", RefundStatusFailed, RefundStatusInitiated, false},
		{"empty from", RefundStatus(""), RefundStatusInitiated, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, CanTransitionRefund(tc.from, tc.to))
		})
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: "pending", To: "refunded"}
	assert.Equal(t, `invalid transition from "pending" to "refunded"`, err.Error())
}

func TestRefundRequested(t *testing.T) {
	p := &Payment{}
	assert.False(t, p.RefundRequested())

	p.RefundStatus = RefundStatusInitiated
	assert.True(t, p.RefundRequested())
}

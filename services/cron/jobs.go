package cron

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services/gateway"
	"github.com/learnhub/lms-api/utils/auth"
)

// ReconcileEnrollments sweeps all enrollments and corrects drifted progress
// and completion status. Runs hourly. Students whose enrollment completes
// during the sweep get a notification.
func (m *CronManager) ReconcileEnrollments() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	jobName := "reconcile_enrollments"

	summary, err := m.reconciler.ReconcileAll(ctx)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf(
		"processed=%d fixed=%d already_correct=%d skipped=%d failed=%d",
		summary.Processed, summary.Fixed, summary.AlreadyCorrect, summary.Skipped, summary.Failed))
}

// PollPendingRefunds checks the gateway for every refund still in flight and
// writes back state changes. Runs every 10 minutes. A gateway failure on one
// refund does not stop the rest of the batch.
func (m *CronManager) PollPendingRefunds() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "poll_pending_refunds"

	var pending []model.Payment
	err := m.db.Where("refund_status IN ?", []model.RefundStatus{
		model.RefundStatusInitiated,
		model.RefundStatusProcessing,
	}).Find(&pending).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query pending refunds: %w", err))
		return
	}

	if len(pending) == 0 {
		m.logJobComplete(jobName, "No pending refunds")
		return
	}

	resolved := 0
	failed := 0

	for i := range pending {
		payment := &pending[i]
		updated, err := m.payments.CheckRefundStatus(ctx, payment.RefundRefID)
		if err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				log.Printf("[CRON] Gateway unavailable for refund %s, will retry next run", payment.RefundRefID)
			} else {
				log.Printf("[CRON] Failed to check refund %s: %v", payment.RefundRefID, err)
			}
			failed++
			continue
		}

		if updated.RefundStatus == payment.RefundStatus {
			continue
		}

		if updated.RefundStatus == model.RefundStatusRefunded || updated.RefundStatus == model.RefundStatusFailed {
			resolved++
			m.notifications.NotifyRefundResolved(ctx, updated)

			if updated.RefundStatus == model.RefundStatusRefunded {
				var student model.User
				if err := m.db.First(&student, updated.StudentID).Error; err == nil {
					if err := m.email.SendRefundProcessed(student.Email, student.Name, updated); err != nil {
						log.Printf("[CRON] Failed to email refund confirmation to user %d: %v", student.ID, err)
					}
				}
			}
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("Checked %d refunds, resolved %d, failed %d", len(pending), resolved, failed))
}

// ExpireStalePayments cancels payments stuck in pending for more than 24
// hours. The gateway session has long since expired for these.
func (m *CronManager) ExpireStalePayments() {
	jobName := "expire_stale_payments"
	cutoff := time.Now().Add(-24 * time.Hour)

	var stale []model.Payment
	err := m.db.Where("status = ? AND created_at < ?", model.PaymentStatusPending, cutoff).Find(&stale).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("failed to query stale payments: %w", err))
		return
	}

	if len(stale) == 0 {
		m.logJobComplete(jobName, "No stale payments")
		return
	}

	cancelled := 0
	failed := 0

	now := time.Now()
	for i := range stale {
		payment := &stale[i]
		if !model.CanTransitionPayment(payment.Status, model.PaymentStatusCancelled) {
			continue
		}

		updates := map[string]interface{}{
			"status": model.PaymentStatusCancelled,
		}
		if payment.FailedAt == nil {
			updates["failed_at"] = now
		}

		if err := m.db.Model(payment).Updates(updates).Error; err != nil {
			log.Printf("[CRON] Failed to cancel stale payment %d: %v", payment.ID, err)
			failed++
			continue
		}
		cancelled++
	}

	m.logJobComplete(jobName, fmt.Sprintf("Cancelled %d stale payments, failed %d", cancelled, failed))
}

// CleanupOldNotifications deletes read notifications older than 90 days and
// prunes expired entries from the token blacklist.
func (m *CronManager) CleanupOldNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "cleanup_old_notifications"
	cutoff := time.Now().AddDate(0, 0, -90)

	result := m.db.Where("read = ? AND created_at < ?", true, cutoff).Delete(&model.UserNotification{})
	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old notifications: %w", result.Error))
		return
	}

	if err := auth.NewBlacklistService(m.db).CleanupExpiredTokens(ctx); err != nil {
		log.Printf("[CRON] Failed to prune token blacklist: %v", err)
	}

	m.logJobComplete(jobName, fmt.Sprintf("Deleted %d old notifications", result.RowsAffected))
}

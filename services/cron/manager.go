package cron

import (
	"log"
	"time"

	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/services"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron          *cron.Cron
	db            *gorm.DB
	reconciler    *services.EnrollmentReconciler
	payments      *services.PaymentService
	notifications *services.NotificationService
	email         *services.EmailService
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, payments *services.PaymentService) *CronManager {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronManager{
		cron:          c,
		db:            db,
		reconciler:    services.NewEnrollmentReconciler(db),
		payments:      payments,
		notifications: services.NewNotificationService(db),
		email:         services.NewEmailService(),
	}
}

// Start starts all cron jobs
func (m *CronManager) Start() error {
	log.Println("Starting cron jobs...")

	if err := m.registerJobs(); err != nil {
		return err
	}

	m.cron.Start()

	log.Println("Cron jobs started successfully")
	return nil
}

// Stop stops all cron jobs
func (m *CronManager) Stop() {
	log.Println("Stopping cron jobs...")
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	// 1. Every 10 minutes: poll pending refunds against the gateway
	_, err := m.cron.AddFunc("0 */10 * * * *", func() {
		m.logJobStart("poll_pending_refunds")
		m.PollPendingRefunds()
	})
	if err != nil {
		return err
	}

	// 2. Every hour: reconcile enrollment progress against completion records
	_, err = m.cron.AddFunc("0 0 * * * *", func() {
		m.logJobStart("reconcile_enrollments")
		m.ReconcileEnrollments()
	})
	if err != nil {
		return err
	}

	// 3. Daily at 2 AM: expire payments stuck in pending
	_, err = m.cron.AddFunc("0 0 2 * * *", func() {
		m.logJobStart("expire_stale_payments")
		m.ExpireStalePayments()
	})
	if err != nil {
		return err
	}

	// 4. Daily at 3 AM: delete old read notifications
	_, err = m.cron.AddFunc("0 0 3 * * *", func() {
		m.logJobStart("cleanup_old_notifications")
		m.CleanupOldNotifications()
	})
	if err != nil {
		return err
	}

	log.Println("All cron jobs registered successfully")
	return nil
}

// logJobStart logs the start of a cron job
func (m *CronManager) logJobStart(jobName string) {
	log.Printf("[CRON] Starting job: %s at %s", jobName, time.Now().Format(time.RFC3339))

	cronLog := model.CronJobLog{
		JobName:   jobName,
		Status:    "running",
		StartedAt: time.Now(),
		Metadata:  "{}",
	}
	m.db.Create(&cronLog)
}

// logJobComplete logs successful completion of a cron job
func (m *CronManager) logJobComplete(jobName string, message string) {
	log.Printf("[CRON] Completed job: %s - %s", jobName, message)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "completed",
			"completed_at": time.Now(),
			"message":      message,
		})
}

// logJobError logs a failed cron job
func (m *CronManager) logJobError(jobName string, err error) {
	log.Printf("[CRON] Job failed: %s - %v", jobName, err)

	m.db.Model(&model.CronJobLog{}).
		Where("job_name = ? AND status = ?", jobName, "running").
		Order("started_at DESC").
		Limit(1).
		Updates(map[string]interface{}{
			"status":       "failed",
			"completed_at": time.Now(),
			"error_msg":    err.Error(),
		})
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/learnhub/lms-api/model"
	"gorm.io/gorm"
)

var ErrEnrollmentNotFound = errors.New("enrollment not found")

// ReconcileSummary reports the outcome of a reconciliation sweep
type ReconcileSummary struct {
	Processed      int `json:"processed"`
	Fixed          int `json:"fixed"`
	AlreadyCorrect int `json:"already_correct"`
	Skipped        int `json:"skipped"` // courses with zero published lessons
	Failed         int `json:"failed"`
}

// EnrollmentReconciler recomputes enrollment progress and completion status
// from the ground truth of lesson completion records, and persists a
// correction when the stored values have drifted.
type EnrollmentReconciler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEnrollmentReconciler creates a new reconciler
func NewEnrollmentReconciler(db *gorm.DB) *EnrollmentReconciler {
	return &EnrollmentReconciler{
		db:  db,
		now: time.Now,
	}
}

// ComputeProgress returns the integer completion percentage, rounded half up.
// A course with zero published lessons has no meaningful percentage; 0 is
// returned but callers must skip reconciliation in that case.
func ComputeProgress(completedLessons, totalLessons int) int {
	if totalLessons <= 0 {
		return 0
	}
	return int(math.Round(float64(completedLessons) * 100 / float64(totalLessons)))
}

// enrollmentUpdates compares the stored enrollment against the recomputed
// truth and returns the column updates to apply. A nil map means no drift.
func (r *EnrollmentReconciler) enrollmentUpdates(e *model.Enrollment, completedLessons, totalLessons int) map[string]interface{} {
	correctProgress := ComputeProgress(completedLessons, totalLessons)
	shouldBeCompleted := totalLessons > 0 && completedLessons == totalLessons

	drift := e.Progress != correctProgress ||
		(shouldBeCompleted && e.Status != model.EnrollmentStatusCompleted) ||
		(!shouldBeCompleted && e.Status == model.EnrollmentStatusCompleted)
	if !drift {
		return nil
	}

	now := r.now()
	updates := map[string]interface{}{
		"progress":         correctProgress,
		"last_accessed_at": now,
	}
	if shouldBeCompleted {
		updates["status"] = model.EnrollmentStatusCompleted
		if e.Status != model.EnrollmentStatusCompleted {
			updates["completed_at"] = now
		}
	} else {
		updates["status"] = model.EnrollmentStatusActive
		if e.Status == model.EnrollmentStatusCompleted {
			// The course gained lessons since completion; demote and clear
			// the completion stamp so a later re-completion restamps it.
			updates["completed_at"] = nil
		}
	}
	return updates
}

// countPublishedLessons counts the published lessons in a course
func (r *EnrollmentReconciler) countPublishedLessons(ctx context.Context, courseID uint) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Lesson{}).
		Where("course_id = ? AND is_published = ?", courseID, true).
		Count(&total).Error
	return int(total), err
}

// countCompletedLessons counts the completed lesson progress records for a
// (student, course) pair. Only completions of currently published lessons
// count; a completion record for a lesson that was since unpublished or
// deleted must not inflate the numerator past the denominator.
func (r *EnrollmentReconciler) countCompletedLessons(ctx context.Context, studentID, courseID uint) (int, error) {
	var completed int64
	publishedLessons := r.db.Model(&model.Lesson{}).
		Select("id").
		Where("course_id = ? AND is_published = ?", courseID, true)
	err := r.db.WithContext(ctx).Model(&model.LessonProgress{}).
		Where("user_id = ? AND course_id = ? AND is_completed = ?", studentID, courseID, true).
		Where("lesson_id IN (?)", publishedLessons).
		Count(&completed).Error
	return int(completed), err
}

// ReconcileEnrollment reconciles a single enrollment. It returns whether an
// update was written and whether the enrollment was skipped for lack of
// published lessons. The reconciler only reads completion records; it never
// touches payment fields.
func (r *EnrollmentReconciler) ReconcileEnrollment(ctx context.Context, enrollment *model.Enrollment) (fixed bool, skipped bool, err error) {
	totalLessons, err := r.countPublishedLessons(ctx, enrollment.CourseID)
	if err != nil {
		return false, false, fmt.Errorf("failed to count lessons for course %d: %w", enrollment.CourseID, err)
	}
	if totalLessons == 0 {
		// No denominator. Not an error; the enrollment is left untouched.
		return false, true, nil
	}

	completedLessons, err := r.countCompletedLessons(ctx, enrollment.StudentID, enrollment.CourseID)
	if err != nil {
		return false, false, fmt.Errorf("failed to count completions for enrollment %d: %w", enrollment.ID, err)
	}

	updates := r.enrollmentUpdates(enrollment, completedLessons, totalLessons)
	if updates == nil {
		return false, false, nil
	}

	if err := r.db.WithContext(ctx).Model(enrollment).Updates(updates).Error; err != nil {
		return false, false, fmt.Errorf("failed to update enrollment %d: %w", enrollment.ID, err)
	}
	return true, false, nil
}

// ReconcilePair reconciles the enrollment for one (student, course) pair and
// returns the refreshed enrollment.
func (r *EnrollmentReconciler) ReconcilePair(ctx context.Context, studentID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}

	if _, _, err := r.ReconcileEnrollment(ctx, &enrollment); err != nil {
		return nil, err
	}

	// Reload so callers see the corrected values
	if err := r.db.WithContext(ctx).First(&enrollment, enrollment.ID).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ReconcileAll sweeps every enrollment sequentially. A failure on one
// enrollment is logged and the sweep continues; only a failure to iterate the
// table itself aborts the run. Published-lesson counts are cached per course
// for the duration of the sweep.
func (r *EnrollmentReconciler) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	summary := &ReconcileSummary{}
	lessonTotals := make(map[uint]int)

	var enrollments []model.Enrollment
	result := r.db.WithContext(ctx).FindInBatches(&enrollments, 200, func(tx *gorm.DB, batch int) error {
		for i := range enrollments {
			enrollment := &enrollments[i]
			summary.Processed++

			totalLessons, ok := lessonTotals[enrollment.CourseID]
			if !ok {
				var err error
				totalLessons, err = r.countPublishedLessons(ctx, enrollment.CourseID)
				if err != nil {
					log.Printf("[RECONCILE] enrollment %d: %v", enrollment.ID, err)
					summary.Failed++
					continue
				}
				lessonTotals[enrollment.CourseID] = totalLessons
			}

			if totalLessons == 0 {
				log.Printf("[RECONCILE] course %d has no published lessons, skipping enrollment %d", enrollment.CourseID, enrollment.ID)
				summary.Skipped++
				continue
			}

			completedLessons, err := r.countCompletedLessons(ctx, enrollment.StudentID, enrollment.CourseID)
			if err != nil {
				log.Printf("[RECONCILE] enrollment %d: %v", enrollment.ID, err)
				summary.Failed++
				continue
			}

			updates := r.enrollmentUpdates(enrollment, completedLessons, totalLessons)
			if updates == nil {
				summary.AlreadyCorrect++
				continue
			}

			if err := r.db.WithContext(ctx).Model(enrollment).Updates(updates).Error; err != nil {
				log.Printf("[RECONCILE] failed to update enrollment %d: %v", enrollment.ID, err)
				summary.Failed++
				continue
			}
			summary.Fixed++
		}
		return nil
	})
	if result.Error != nil {
		return summary, fmt.Errorf("failed to iterate enrollments: %w", result.Error)
	}

	log.Printf("[RECONCILE] processed=%d fixed=%d already_correct=%d skipped=%d failed=%d",
		summary.Processed, summary.Fixed, summary.AlreadyCorrect, summary.Skipped, summary.Failed)
	return summary, nil
}

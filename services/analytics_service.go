package services

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/lms-api/model"
	"gorm.io/gorm"
)

// AnalyticsService handles analytics and reporting for the admin dashboard
type AnalyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(db *gorm.DB) *AnalyticsService {
	return &AnalyticsService{db: db}
}

// DashboardStats represents overall platform statistics
type DashboardStats struct {
	TotalUsers           int64   `json:"total_users"`
	TotalInstructors     int64   `json:"total_instructors"`
	NewUsersToday        int64   `json:"new_users_today"`
	TotalCourses         int64   `json:"total_courses"`
	PublishedCourses     int64   `json:"published_courses"`
	TotalEnrollments     int64   `json:"total_enrollments"`
	ActiveEnrollments    int64   `json:"active_enrollments"`
	CompletedEnrollments int64   `json:"completed_enrollments"`
	AverageProgress      float64 `json:"average_progress"`
	TotalRevenue         float64 `json:"total_revenue"`
	RefundedAmount       float64 `json:"refunded_amount"`
	PendingRefunds       int64   `json:"pending_refunds"`
	TotalReviews         int64   `json:"total_reviews"`
	AverageRating        float64 `json:"average_rating"`
}

// GetDashboardStats retrieves overall platform statistics
func (s *AnalyticsService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	if err := db.Model(&model.User{}).
		Where("role = ?", model.RoleInstructor).
		Count(&stats.TotalInstructors).Error; err != nil {
		return nil, fmt.Errorf("failed to count instructors: %w", err)
	}

	startOfDay := time.Now().Truncate(24 * time.Hour)
	if err := db.Model(&model.User{}).
		Where("created_at >= ?", startOfDay).
		Count(&stats.NewUsersToday).Error; err != nil {
		return nil, fmt.Errorf("failed to count new users: %w", err)
	}

	if err := db.Model(&model.Course{}).Count(&stats.TotalCourses).Error; err != nil {
		return nil, fmt.Errorf("failed to count courses: %w", err)
	}

	if err := db.Model(&model.Course{}).
		Where("status = ?", model.CourseStatusPublished).
		Count(&stats.PublishedCourses).Error; err != nil {
		return nil, fmt.Errorf("failed to count published courses: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).Count(&stats.TotalEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).
		Where("status = ?", model.EnrollmentStatusActive).
		Count(&stats.ActiveEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count active enrollments: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).
		Where("status = ?", model.EnrollmentStatusCompleted).
		Count(&stats.CompletedEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count completed enrollments: %w", err)
	}

	var avgProgress *float64
	if err := db.Model(&model.Enrollment{}).
		Select("AVG(progress)").
		Scan(&avgProgress).Error; err != nil {
		return nil, fmt.Errorf("failed to average progress: %w", err)
	}
	if avgProgress != nil {
		stats.AverageProgress = *avgProgress
	}

	var revenue *float64
	if err := db.Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("status IN ?", []model.PaymentStatus{model.PaymentStatusSuccess, model.PaymentStatusRefunded}).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if revenue != nil {
		stats.TotalRevenue = *revenue
	}

	var refunded *float64
	if err := db.Model(&model.Payment{}).
		Select("SUM(refund_amount)").
		Where("status = ?", model.PaymentStatusRefunded).
		Scan(&refunded).Error; err != nil {
		return nil, fmt.Errorf("failed to sum refunds: %w", err)
	}
	if refunded != nil {
		stats.RefundedAmount = *refunded
	}

	if err := db.Model(&model.Payment{}).
		Where("refund_status IN ?", []model.RefundStatus{model.RefundStatusInitiated, model.RefundStatusProcessing}).
		Count(&stats.PendingRefunds).Error; err != nil {
		return nil, fmt.Errorf("failed to count pending refunds: %w", err)
	}

	if err := db.Model(&model.Review{}).Count(&stats.TotalReviews).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	var avgRating *float64
	if err := db.Model(&model.Review{}).
		Select("AVG(rating)").
		Scan(&avgRating).Error; err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	if avgRating != nil {
		stats.AverageRating = *avgRating
	}

	return stats, nil
}

// CourseStats represents per-course rollups for instructors
type CourseStats struct {
	CourseID             uint    `json:"course_id"`
	TotalEnrollments     int64   `json:"total_enrollments"`
	CompletedEnrollments int64   `json:"completed_enrollments"`
	AverageProgress      float64 `json:"average_progress"`
	Revenue              float64 `json:"revenue"`
	AverageRating        float64 `json:"average_rating"`
	ReviewCount          int64   `json:"review_count"`
}

// GetCourseStats retrieves rollups for a single course
func (s *AnalyticsService) GetCourseStats(ctx context.Context, courseID uint) (*CourseStats, error) {
	stats := &CourseStats{CourseID: courseID}
	db := s.db.WithContext(ctx)

	if err := db.Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Count(&stats.TotalEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count enrollments: %w", err)
	}

	if err := db.Model(&model.Enrollment{}).
		Where("course_id = ? AND status = ?", courseID, model.EnrollmentStatusCompleted).
		Count(&stats.CompletedEnrollments).Error; err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	var avgProgress *float64
	if err := db.Model(&model.Enrollment{}).
		Select("AVG(progress)").
		Where("course_id = ?", courseID).
		Scan(&avgProgress).Error; err != nil {
		return nil, fmt.Errorf("failed to average progress: %w", err)
	}
	if avgProgress != nil {
		stats.AverageProgress = *avgProgress
	}

	var revenue *float64
	if err := db.Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("course_id = ? AND status IN ?", courseID,
			[]model.PaymentStatus{model.PaymentStatusSuccess, model.PaymentStatusRefunded}).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if revenue != nil {
		stats.Revenue = *revenue
	}

	var avgRating *float64
	if err := db.Model(&model.Review{}).
		Select("AVG(rating)").
		Where("course_id = ?", courseID).
		Scan(&avgRating).Error; err != nil {
		return nil, fmt.Errorf("failed to average ratings: %w", err)
	}
	if avgRating != nil {
		stats.AverageRating = *avgRating
	}

	if err := db.Model(&model.Review{}).
		Where("course_id = ?", courseID).
		Count(&stats.ReviewCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}

	return stats, nil
}

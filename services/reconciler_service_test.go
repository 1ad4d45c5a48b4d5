package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/learnhub/lms-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.Chapter{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.LessonProgress{},
		&model.Payment{},
		&model.UserNotification{},
	))

	return db
}

// seedSeq keeps generated emails unique across helpers within a test database
var seedSeq int

// seedCourse creates a course with the given number of published lessons and
// returns the course and its lessons
func seedCourse(t *testing.T, db *gorm.DB, publishedLessons int) (*model.Course, []model.Lesson) {
	t.Helper()

	seedSeq++
	instructor := model.User{Email: fmt.Sprintf("instructor-%d@test.local", seedSeq), PasswordHash: "x", Name: "Instructor", Role: model.RoleInstructor}
	require.NoError(t, db.Create(&instructor).Error)

	course := model.Course{InstructorID: instructor.ID, Title: "Test Course", Status: model.CourseStatusPublished}
	require.NoError(t, db.Create(&course).Error)

	chapter := model.Chapter{CourseID: course.ID, Title: "Chapter 1", Order: 1}
	require.NoError(t, db.Create(&chapter).Error)

	lessons := make([]model.Lesson, 0, publishedLessons)
	for i := 0; i < publishedLessons; i++ {
		lesson := model.Lesson{
			ChapterID:   chapter.ID,
			CourseID:    course.ID,
			Title:       "Lesson",
			Order:       i + 1,
			IsPublished: true,
		}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}
	return &course, lessons
}

func seedStudent(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	student := model.User{Email: email, PasswordHash: "x", Name: "Student", Role: model.RoleStudent}
	require.NoError(t, db.Create(&student).Error)
	return &student
}

func seedEnrollment(t *testing.T, db *gorm.DB, studentID, courseID uint, status model.EnrollmentStatus, progress int) *model.Enrollment {
	t.Helper()
	e := model.Enrollment{
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
		Status:     status,
		Progress:   progress,
	}
	require.NoError(t, db.Create(&e).Error)
	return &e
}

func completeLessons(t *testing.T, db *gorm.DB, studentID, courseID uint, lessons []model.Lesson, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		lp := model.LessonProgress{
			UserID:      studentID,
			LessonID:    lessons[i].ID,
			CourseID:    courseID,
			IsCompleted: true,
			CompletedAt: &now,
		}
		require.NoError(t, db.Create(&lp).Error)
	}
}

func TestComputeProgress(t *testing.T) {
	assert.Equal(t, 0, ComputeProgress(0, 10))
	assert.Equal(t, 70, ComputeProgress(7, 10))
	assert.Equal(t, 100, ComputeProgress(12, 12))
	assert.Equal(t, 92, ComputeProgress(11, 12)) // 91.67 rounds up
	assert.Equal(t, 33, ComputeProgress(1, 3))   // 33.33 rounds down
	assert.Equal(t, 13, ComputeProgress(1, 8))   // 12.5 rounds half up
	assert.Equal(t, 17, ComputeProgress(1, 6))   // 16.67 rounds up
	assert.Equal(t, 0, ComputeProgress(5, 0))    // no denominator
}

func TestReconcileEnrollmentFixesDriftedProgress(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 10)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 50)
	completeLessons(t, db, student.ID, course.ID, lessons, 7)

	r := NewEnrollmentReconciler(db)
	fixed, skipped, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, fixed)
	assert.False(t, skipped)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 70, got.Progress)
	assert.Equal(t, model.EnrollmentStatusActive, got.Status)
	assert.NotNil(t, got.LastAccessedAt)
	assert.Nil(t, got.CompletedAt)
}

func TestReconcileEnrollmentCompletesAtFullProgress(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 12)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 92)
	completeLessons(t, db, student.ID, course.ID, lessons, 12)

	r := NewEnrollmentReconciler(db)
	fixed, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, fixed)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, model.EnrollmentStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestReconcileEnrollmentAlmostCompleteStaysActive(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 12)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 0)
	completeLessons(t, db, student.ID, course.ID, lessons, 11)

	r := NewEnrollmentReconciler(db)
	_, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 92, got.Progress)
	assert.Equal(t, model.EnrollmentStatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestReconcileEnrollmentDemotesWhenNewLessonPublished(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 4)
	student := seedStudent(t, db, "s1@test.local")

	completedAt := time.Now().Add(-24 * time.Hour)
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusCompleted, 100)
	require.NoError(t, db.Model(enrollment).Update("completed_at", completedAt).Error)
	completeLessons(t, db, student.ID, course.ID, lessons, 4)

	// A fifth lesson appears after the student finished
	var chapter model.Chapter
	require.NoError(t, db.Where("course_id = ?", course.ID).First(&chapter).Error)
	newLesson := model.Lesson{ChapterID: chapter.ID, CourseID: course.ID, Title: "New Lesson", Order: 5, IsPublished: true}
	require.NoError(t, db.Create(&newLesson).Error)

	r := NewEnrollmentReconciler(db)
	fixed, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, fixed)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 80, got.Progress)
	assert.Equal(t, model.EnrollmentStatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestReconcileEnrollmentIgnoresUnpublishedLessonCompletions(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 4)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusCompleted, 100)
	completeLessons(t, db, student.ID, course.ID, lessons, 4)

	// One finished lesson is unpublished afterwards. Its completion record
	// stays behind but must not count against the 3 remaining lessons.
	require.NoError(t, db.Model(&lessons[0]).Update("is_published", false).Error)

	r := NewEnrollmentReconciler(db)
	_, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, model.EnrollmentStatusCompleted, got.Status)
}

func TestReconcileEnrollmentPartialProgressAfterUnpublish(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 4)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 50)
	completeLessons(t, db, student.ID, course.ID, lessons, 2)

	// The student completed lessons 1 and 2; lesson 1 is then unpublished,
	// leaving 1 counted completion out of 3 published lessons.
	require.NoError(t, db.Model(&lessons[0]).Update("is_published", false).Error)

	r := NewEnrollmentReconciler(db)
	fixed, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, fixed)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 33, got.Progress)
	assert.LessOrEqual(t, got.Progress, 100)
	assert.Equal(t, model.EnrollmentStatusActive, got.Status)
}

func TestReconcileEnrollmentSkipsCourseWithNoPublishedLessons(t *testing.T) {
	db := setupTestDB(t)
	course, _ := seedCourse(t, db, 0)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 40)

	r := NewEnrollmentReconciler(db)
	fixed, skipped, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.False(t, fixed)
	assert.True(t, skipped)

	// Untouched
	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 40, got.Progress)
	assert.Equal(t, model.EnrollmentStatusActive, got.Status)
}

func TestReconcileEnrollmentIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 10)
	student := seedStudent(t, db, "s1@test.local")
	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 0)
	completeLessons(t, db, student.ID, course.ID, lessons, 7)

	r := NewEnrollmentReconciler(db)

	fixed, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)
	assert.True(t, fixed)

	// Reload and reconcile again: nothing left to fix
	var reloaded model.Enrollment
	require.NoError(t, db.First(&reloaded, enrollment.ID).Error)

	fixed, skipped, err := r.ReconcileEnrollment(context.Background(), &reloaded)
	require.NoError(t, err)
	assert.False(t, fixed)
	assert.False(t, skipped)
}

func TestReconcileEnrollmentNeverTouchesPaymentFields(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 10)
	student := seedStudent(t, db, "s1@test.local")

	enrollment := seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 0)
	require.NoError(t, db.Model(enrollment).Updates(map[string]interface{}{
		"payment_status": model.EnrollmentPaymentPaid,
		"payment_amount": 499.0,
	}).Error)
	completeLessons(t, db, student.ID, course.ID, lessons, 5)

	r := NewEnrollmentReconciler(db)
	_, _, err := r.ReconcileEnrollment(context.Background(), enrollment)
	require.NoError(t, err)

	var got model.Enrollment
	require.NoError(t, db.First(&got, enrollment.ID).Error)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, model.EnrollmentPaymentPaid, got.PaymentStatus)
	assert.Equal(t, 499.0, got.PaymentAmount)
}

func TestReconcilePairReturnsRefreshedEnrollment(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 10)
	student := seedStudent(t, db, "s1@test.local")
	seedEnrollment(t, db, student.ID, course.ID, model.EnrollmentStatusActive, 50)
	completeLessons(t, db, student.ID, course.ID, lessons, 7)

	r := NewEnrollmentReconciler(db)
	got, err := r.ReconcilePair(context.Background(), student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 70, got.Progress)
}

func TestReconcilePairUnknownEnrollment(t *testing.T) {
	db := setupTestDB(t)

	r := NewEnrollmentReconciler(db)
	_, err := r.ReconcilePair(context.Background(), 999, 999)
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestReconcileAllSummary(t *testing.T) {
	db := setupTestDB(t)
	course, lessons := seedCourse(t, db, 10)
	emptyCourse, _ := seedCourse(t, db, 0)

	drifted := seedStudent(t, db, "drifted@test.local")
	correct := seedStudent(t, db, "correct@test.local")
	orphaned := seedStudent(t, db, "orphaned@test.local")

	// Drifted: 7 completions but stored at 50
	seedEnrollment(t, db, drifted.ID, course.ID, model.EnrollmentStatusActive, 50)
	completeLessons(t, db, drifted.ID, course.ID, lessons, 7)

	// Correct: 3 completions stored at 30
	seedEnrollment(t, db, correct.ID, course.ID, model.EnrollmentStatusActive, 30)
	completeLessons(t, db, correct.ID, course.ID, lessons, 3)

	// Skipped: enrolled in a course with no published lessons
	seedEnrollment(t, db, orphaned.ID, emptyCourse.ID, model.EnrollmentStatusActive, 10)

	r := NewEnrollmentReconciler(db)
	summary, err := r.ReconcileAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Fixed)
	assert.Equal(t, 1, summary.AlreadyCorrect)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	// Second sweep finds nothing to fix
	summary, err = r.ReconcileAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Fixed)
	assert.Equal(t, 2, summary.AlreadyCorrect)
}

package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/learnhub/lms-api/database"
	"github.com/learnhub/lms-api/handlers"
	admin_handlers "github.com/learnhub/lms-api/handlers/admin"
	assignment_handlers "github.com/learnhub/lms-api/handlers/assignment"
	auth_handlers "github.com/learnhub/lms-api/handlers/auth"
	chapter_handlers "github.com/learnhub/lms-api/handlers/chapter"
	course_handlers "github.com/learnhub/lms-api/handlers/course"
	enrollment_handlers "github.com/learnhub/lms-api/handlers/enrollment"
	exam_handlers "github.com/learnhub/lms-api/handlers/exam"
	lesson_handlers "github.com/learnhub/lms-api/handlers/lesson"
	notification_handlers "github.com/learnhub/lms-api/handlers/notification"
	payment_handlers "github.com/learnhub/lms-api/handlers/payment"
	review_handlers "github.com/learnhub/lms-api/handlers/review"
	"github.com/learnhub/lms-api/services"
	"github.com/learnhub/lms-api/utils/auth"
	"github.com/learnhub/lms-api/utils/cache"
	"github.com/learnhub/lms-api/utils/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires every handler into the fiber app
func SetupRoutes(app *fiber.App, store database.Storage, payments *services.PaymentService) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := os.Getenv("JWT_ISSUER")
	if jwtIssuer == "" {
		jwtIssuer = "learnhub-api"
	}

	jwtConfig := auth.JWTConfig{
		Secret:        jwtSecret,
		Expiry:        24 * time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        jwtIssuer,
	}
	jwtManager := auth.NewJWTManager(jwtConfig)

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis cache for brute force protection
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection will be disabled.", err)
		redisCache = nil
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Handlers
	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(db)
	chapterHandler := chapter_handlers.NewChapterHandler(db)
	lessonHandler := lesson_handlers.NewLessonHandler(db)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(db)
	paymentHandler := payment_handlers.NewPaymentHandler(db, payments)
	reviewHandler := review_handlers.NewReviewHandler(db)
	examHandler := exam_handlers.NewExamHandler(db)
	assignmentHandler := assignment_handlers.NewAssignmentHandler(db)
	notificationHandler := notification_handlers.NewNotificationHandler(db)
	adminHandler := admin_handlers.NewAdminHandler(db)
	healthHandler := handlers.NewHealthHandler(db, redisCache)

	// Security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check (public)
	app.Get("/ping", healthHandler.Check)

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Course catalog
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.List)                                             // Public: published catalog
	courses.Get("/mine", authMiddleware.RequireStaff(), courseHandler.ListMine)      // Instructor: own courses
	courses.Get("/:id", courseHandler.Get)                                           // Public: course detail
	courses.Post("/", authMiddleware.RequireStaff(), courseHandler.Create)           // Instructor: create draft
	courses.Put("/:id", authMiddleware.RequireStaff(), courseHandler.Update)         // Instructor: update own
	courses.Post("/:id/publish", authMiddleware.RequireStaff(), courseHandler.Publish)
	courses.Post("/:id/archive", authMiddleware.RequireStaff(), courseHandler.Archive)
	courses.Delete("/:id", authMiddleware.RequireAdmin(), courseHandler.Delete)

	// Chapters (nested under courses)
	courses.Post("/:courseId/chapters", authMiddleware.RequireStaff(), chapterHandler.Create)
	api.Put("/chapters/:id", authMiddleware.RequireStaff(), chapterHandler.Update)
	api.Delete("/chapters/:id", authMiddleware.RequireStaff(), chapterHandler.Delete)

	// Lessons (nested under chapters)
	api.Post("/chapters/:chapterId/lessons", authMiddleware.RequireStaff(), lessonHandler.Create)
	api.Put("/lessons/:id", authMiddleware.RequireStaff(), lessonHandler.Update)
	api.Delete("/lessons/:id", authMiddleware.RequireStaff(), lessonHandler.Delete)

	// Enrollment and learning progress
	enrollments := api.Group("/enrollments", authMiddleware.Required())
	enrollments.Get("/", enrollmentHandler.ListMine)
	enrollments.Post("/courses/:courseId", enrollmentHandler.Enroll)
	enrollments.Get("/courses/:courseId/progress", enrollmentHandler.GetProgress)
	enrollments.Post("/lessons/:lessonId/complete", enrollmentHandler.CompleteLesson)

	// Payments
	paymentsGroup := api.Group("/payments")
	paymentsGroup.Post("/checkout", authMiddleware.Required(), paymentHandler.Checkout)
	paymentsGroup.Post("/callback", paymentHandler.Callback) // Gateway notification, unauthenticated
	paymentsGroup.Get("/", authMiddleware.Required(), paymentHandler.ListMine)
	paymentsGroup.Get("/:id", authMiddleware.Required(), paymentHandler.Get)

	// Reviews
	courses.Get("/:courseId/reviews", reviewHandler.ListForCourse)
	courses.Post("/:courseId/reviews", authMiddleware.Required(), reviewHandler.Create)
	api.Delete("/reviews/:id", authMiddleware.Required(), reviewHandler.Delete)

	// Exams
	courses.Get("/:courseId/exams", authMiddleware.Required(), examHandler.ListForCourse)
	courses.Post("/:courseId/exams", authMiddleware.RequireStaff(), examHandler.Create)
	api.Get("/exams/:id", authMiddleware.Required(), examHandler.Get)
	api.Put("/exams/:id", authMiddleware.RequireStaff(), examHandler.Update)
	api.Delete("/exams/:id", authMiddleware.RequireStaff(), examHandler.Delete)
	api.Post("/exams/:examId/questions", authMiddleware.RequireStaff(), examHandler.AddQuestion)
	api.Delete("/questions/:id", authMiddleware.RequireStaff(), examHandler.DeleteQuestion)

	// Assignments
	courses.Get("/:courseId/assignments", authMiddleware.Required(), assignmentHandler.ListForCourse)
	courses.Post("/:courseId/assignments", authMiddleware.RequireStaff(), assignmentHandler.Create)
	api.Put("/assignments/:id", authMiddleware.RequireStaff(), assignmentHandler.Update)
	api.Delete("/assignments/:id", authMiddleware.RequireStaff(), assignmentHandler.Delete)
	api.Post("/assignments/:assignmentId/submissions", authMiddleware.Required(), assignmentHandler.Submit)
	api.Get("/assignments/:assignmentId/submissions", authMiddleware.RequireStaff(), assignmentHandler.ListSubmissions)
	api.Post("/submissions/:id/grade", authMiddleware.RequireStaff(), assignmentHandler.Grade)

	// Notifications
	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Post("/:id/read", notificationHandler.MarkRead)
	notifications.Post("/read-all", notificationHandler.MarkAllRead)

	// Admin
	admin := api.Group("/admin", authMiddleware.RequireAdmin())
	admin.Get("/dashboard", adminHandler.Dashboard)
	admin.Get("/courses/:courseId/stats", adminHandler.CourseStats)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Put("/users/:id/role",
		middleware.AdminAuditLog(db, "user_role_update", "users"),
		adminHandler.UpdateUserRole)
	admin.Put("/users/:id/active",
		middleware.AdminAuditLog(db, "user_set_active", "users"),
		adminHandler.SetUserActive)
	admin.Get("/audit-logs", adminHandler.ListAuditLogs)
	admin.Get("/cron-logs", adminHandler.ListCronLogs)

	// Admin payments and refunds
	admin.Get("/payments", paymentHandler.ListAll)
	admin.Post("/payments/:id/refund",
		middleware.AdminAuditLog(db, "refund_initiate", "payments"),
		paymentHandler.RequestRefund)
	admin.Get("/refunds/:refundRefId", paymentHandler.CheckRefundStatus)

	// Admin enrollment reconciliation
	admin.Post("/enrollments/:id/reconcile", enrollmentHandler.Reconcile)
	admin.Post("/enrollments/reconcile-all", enrollmentHandler.ReconcileAll)
}

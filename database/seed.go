package database

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/learnhub/lms-api/model"
	"github.com/learnhub/lms-api/utils/auth"
	"gorm.io/gorm"
)

// Seed creates the default admin account and a small demo catalog if the
// database is empty. Safe to run repeatedly.
func Seed(db *gorm.DB) error {
	if err := seedAdmin(db); err != nil {
		return err
	}
	return seedDemoCourse(db)
}

func seedAdmin(db *gorm.DB) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@learnhub.local"
	}
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "changeme-admin"
	}

	var existing model.User
	err := db.Where("email = ?", adminEmail).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	admin := model.User{
		Email:        adminEmail,
		PasswordHash: hash,
		Name:         "Platform Admin",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Seeded admin account %s", adminEmail)
	return nil
}

func seedDemoCourse(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword("changeme-instructor")
	if err != nil {
		return err
	}

	instructor := model.User{
		Email:        "instructor@learnhub.local",
		PasswordHash: hash,
		Name:         "Demo Instructor",
		Role:         model.RoleInstructor,
		IsActive:     true,
	}
	if err := db.Where("email = ?", instructor.Email).FirstOrCreate(&instructor).Error; err != nil {
		return err
	}

	course := model.Course{
		InstructorID: instructor.ID,
		Title:        "Getting Started with LearnHub",
		Description:  "A short free course that walks through the platform.",
		Status:       model.CourseStatusPublished,
		IsPaid:       false,
	}
	if err := db.Create(&course).Error; err != nil {
		return err
	}

	chapter := model.Chapter{
		CourseID: course.ID,
		Title:    "Welcome",
		Order:    1,
	}
	if err := db.Create(&chapter).Error; err != nil {
		return err
	}

	lessons := []model.Lesson{
		{ChapterID: chapter.ID, CourseID: course.ID, Title: "Introduction", Order: 1, IsPublished: true, DurationSeconds: 300},
		{ChapterID: chapter.ID, CourseID: course.ID, Title: "Finding courses", Order: 2, IsPublished: true, DurationSeconds: 420},
		{ChapterID: chapter.ID, CourseID: course.ID, Title: "Tracking your progress", Order: 3, IsPublished: true, DurationSeconds: 360},
	}
	for i := range lessons {
		if err := db.Create(&lessons[i]).Error; err != nil {
			return err
		}
	}

	log.Printf("Seeded demo course %q with %d lessons at %s", course.Title, len(lessons), time.Now().Format(time.RFC3339))
	return nil
}

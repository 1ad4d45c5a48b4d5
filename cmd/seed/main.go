package main

import (
	"log"

	"github.com/learnhub/lms-api/config"
	"github.com/learnhub/lms-api/database"
	"gorm.io/gorm"
)

func main() {
	if err := config.LoadENV(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	store, err := database.StartGORM()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("failed to get GORM DB instance")
	}

	if err := database.Seed(db); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	log.Println("Seeding complete")
}

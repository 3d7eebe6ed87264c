// Command migrate creates or updates the database schema.
// cmd/migrate/main.go
package main

import (
	"log"

	"review-tracker-api/config"
	"review-tracker-api/models"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize database
	config.InitDB()

	// Order matters only for readability; AutoMigrate resolves the rest.
	err := config.DB.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Item{},
		&models.ReviewerAssignment{},
		&models.ItemStatusHistory{},
		&models.ReviewerResponseHistory{},
		&models.ReminderLog{},
		&models.Notification{},
	)
	if err != nil {
		log.Fatal("Migration failed:", err)
	}

	log.Println("Migration completed!")
}

// Command seed-admin creates an admin account, or rotates its password
// if the email already exists. Run once after migrate to bootstrap a
// fresh install.
package main

import (
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/models"
	"review-tracker-api/utils"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	config.InitDB()

	var (
		email     string
		password  string
		firstName string
		lastName  string
	)

	flag.StringVar(&email, "email", "", "account email (required)")
	flag.StringVar(&password, "password", "", "account password (required)")
	flag.StringVar(&firstName, "first-name", "Admin", "first name")
	flag.StringVar(&lastName, "last-name", "Account", "last name")
	flag.Parse()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		log.Fatal("both -email and -password are required")
	}
	if !utils.ValidateEmail(email) {
		log.Fatalf("invalid email '%s'", email)
	}
	if ok, msg := utils.ValidatePassword(password); !ok {
		log.Fatal(msg)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	now := time.Now()

	var user models.User
	err = config.DB.Where("email = ? AND delete_at IS NULL", email).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatal("Failed to look up user:", err)
		}
		user = models.User{
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
			Password:  hashed,
			Role:      models.RoleAdmin,
			CreateAt:  &now,
		}
		if err := config.DB.Create(&user).Error; err != nil {
			log.Fatal("Failed to create admin account:", err)
		}
		log.Printf("Created admin account %s (user_id %d)", email, user.UserID)
		return
	}

	updates := map[string]interface{}{
		"password":  hashed,
		"role":      models.RoleAdmin,
		"update_at": now,
	}
	if err := config.DB.Model(&user).Updates(updates).Error; err != nil {
		log.Fatal("Failed to rotate password:", err)
	}
	log.Printf("Rotated password for %s (user_id %d)", email, user.UserID)
}

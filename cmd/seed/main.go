package main

import (
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/internal/database"
	"github.com/studyshare/backend/internal/models"
	"github.com/studyshare/backend/internal/utils"
)

// Seeds demo accounts for local development. Regular users only: the
// admin account comes from the first real signup, which is the single
// bootstrap path for the admin role.
func main() {
	cfg := config.Load()
	database.Connect(cfg)
	database.Migrate()

	password := os.Getenv("DEMO_PASSWORD")
	if password == "" {
		log.Fatal("Missing environment variable: DEMO_PASSWORD")
	}

	usernames := []string{"alice", "bob", "carol"}
	if list := os.Getenv("DEMO_USERS"); list != "" {
		usernames = strings.Split(list, ",")
	}

	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}

		var existing models.User
		if err := database.DB.Where("username = ?", username).First(&existing).Error; err == nil {
			log.Println("User already exists, skipping:", username)
			continue
		}

		user := models.User{
			ID:             uuid.New(),
			Username:       username,
			PasswordHash:   passwordHash,
			Role:           models.RoleUser,
			ProfilePicture: models.DefaultProfilePicture,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			log.Fatal("Failed to create demo user:", err)
		}

		log.Println("Demo user created:", username)
	}
}

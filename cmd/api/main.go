package main

import (
	"context"
	"log"
	"os"
	"time"

	"review-tracker-api/config"
	"review-tracker-api/middleware"
	"review-tracker-api/monitor"
	"review-tracker-api/routes"
	"review-tracker-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize logging before anything that writes logs
	logFile, logWriter := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	// Initialize database
	config.InitDB()

	// Set Gin mode
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = logWriter

	// Create Gin router
	router := gin.New()

	// Add logging middleware
	router.Use(gin.Logger())

	// Add recovery middleware
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})

	// Add CORS middleware
	router.Use(middleware.CORSMiddleware())

	// Ops surface at root, outside /api/v1
	monitor.RegisterLogsRoute(router)
	monitor.RegisterMonitorPage(router)

	// Setup routes
	routes.SetupRoutes(router)

	ctx := context.Background()

	// Daily reminder scheduler
	reminderService := services.NewReminderService(nil, nil)
	go reminderService.StartDailyLoop(ctx)

	// Artifact watcher: picks up response files dropped by the
	// on-site intake share. Skipped when RESPONSES_DIR is unset.
	if responsesDir := os.Getenv("RESPONSES_DIR"); responsesDir != "" {
		if err := os.MkdirAll(responsesDir, os.ModePerm); err != nil {
			log.Printf("Warning: Failed to create responses directory: %v", err)
		}
		watcher := services.NewArtifactSyncService(responsesDir, nil, services.NewMailNotifier(nil))
		go watcher.StartLoop(ctx, time.Minute)
		log.Printf("📁 Artifact watcher scanning %s", responsesDir)
	}

	// Start server
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📊 Database connected successfully")
	log.Printf("⏰ Reminder scheduler armed for %02d:00", services.ReminderHour())
	log.Printf("🌐 CORS configured for allowed origins")

	if ginMode == "release" {
		log.Printf("🏭 Running in production mode")
	} else {
		log.Printf("🔧 Running in development mode")
	}

	if err := router.Run(":" + port); err != nil {
		log.Fatal("❌ Failed to start server:", err)
	}
}

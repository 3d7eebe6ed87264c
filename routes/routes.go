package routes

import (
	"review-tracker-api/controllers"
	"review-tracker-api/middleware"
	"review-tracker-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine) {
	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			// Authentication
			public.POST("/login", controllers.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Review Tracker API is running",
				})
			})

			// Token-authenticated response forms. These carry no JWT:
			// the emailed token is the credential.
			public.GET("/respond/reviewer", controllers.GetReviewerForm)
			public.POST("/respond/reviewer", controllers.SubmitReviewerResponse)
			public.GET("/respond/qcr", controllers.GetQcrForm)
			public.POST("/respond/qcr", controllers.SubmitQcrResponse)
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Common endpoints (all authenticated users)
			protected.GET("/lookups", controllers.GetLookups)

			// Bucket registry
			projects := protected.Group("/projects")
			{
				projects.GET("", controllers.GetProjects)
				projects.POST("", controllers.CreateProject)
				projects.PUT("/:id", controllers.UpdateProject)
				projects.DELETE("/:id", controllers.DeleteProject)
			}

			// Review items
			items := protected.Group("/items")
			{
				items.GET("", controllers.GetItems)
				items.GET("/:id", controllers.GetItem)
				items.POST("", controllers.CreateItem)
				items.PUT("/:id", controllers.UpdateItem)

				items.POST("/:id/assign", controllers.AssignReviewers)
				items.POST("/:id/assignments/:assignment_id/excuse", controllers.ExcuseReviewer)

				items.POST("/:id/notify-reviewer", controllers.NotifyReviewer)
				items.POST("/:id/notify-qcr", controllers.NotifyQcr)

				items.POST("/:id/close", controllers.CloseItem)
				items.POST("/:id/reopen", controllers.ReopenItem)
				items.GET("/:id/history", controllers.GetItemHistory)
			}

			// Reminder engine
			reminders := protected.Group("/reminders")
			{
				reminders.GET("/preview", controllers.PreviewReminders)
				reminders.POST("/run", controllers.RunReminders)
			}

			// Dashboard
			dashboard := protected.Group("/dashboard")
			{
				dashboard.GET("/stats", controllers.GetDashboardStats)
				dashboard.GET("/reviewer-workload", controllers.GetReviewerWorkload)
			}

			// User administration
			users := protected.Group("/users")
			users.Use(middleware.RequireRole(models.RoleAdmin))
			{
				users.GET("", controllers.GetUsers)
				users.POST("", controllers.CreateUser)
				users.PUT("/:id", controllers.UpdateUser)
				users.DELETE("/:id", controllers.DeleteUser)
			}
		}
	}
}

package routes

import (
	"campus-ministry-api/controllers"
	"campus-ministry-api/middleware"

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
			public.POST("/refresh", controllers.RefreshToken)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(200, gin.H{
					"status":  "ok",
					"message": "Campus Ministry API is running",
				})
			})
		}

		// Protected routes (require authentication + a resolved scope)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		protected.Use(middleware.ScopeMiddleware())
		{
			// User profile
			protected.GET("/profile", controllers.GetProfile)
			protected.PUT("/change-password", controllers.ChangePassword)

			// Hierarchy reference data
			protected.GET("/regions", controllers.GetRegions)
			protected.GET("/regions/:id", controllers.GetRegion)
			protected.POST("/regions", controllers.CreateRegion)
			protected.PUT("/regions/:id", controllers.UpdateRegion)
			protected.DELETE("/regions/:id", controllers.DeleteRegion)
			protected.GET("/provinces", controllers.GetProvinces)

			// Universities
			universities := protected.Group("/universities")
			{
				universities.GET("", controllers.GetUniversities)
				universities.GET("/:id", controllers.GetUniversity)
				universities.POST("", controllers.CreateUniversity)
				universities.PUT("/:id", controllers.UpdateUniversity)
				universities.DELETE("/:id", controllers.DeleteUniversity)
			}

			// Small groups
			smallGroups := protected.Group("/small-groups")
			{
				smallGroups.GET("", controllers.GetSmallGroups)
				smallGroups.GET("/:id", controllers.GetSmallGroup)
				smallGroups.POST("", controllers.CreateSmallGroup)
				smallGroups.PUT("/:id", controllers.UpdateSmallGroup)
				smallGroups.DELETE("/:id", controllers.DeleteSmallGroup)
			}

			// Graduate small groups
			graduateGroups := protected.Group("/graduate-groups")
			{
				graduateGroups.GET("", controllers.GetGraduateGroups)
				graduateGroups.GET("/:id", controllers.GetGraduateGroup)
				graduateGroups.POST("", controllers.CreateGraduateGroup)
				graduateGroups.PUT("/:id", controllers.UpdateGraduateGroup)
				graduateGroups.DELETE("/:id", controllers.DeleteGraduateGroup)
			}

			// Students
			students := protected.Group("/students")
			{
				students.GET("", controllers.GetStudents)
				students.GET("/:id", controllers.GetStudent)
				students.POST("", controllers.CreateStudent)
				students.PUT("/:id", controllers.UpdateStudent)
				students.DELETE("/:id", controllers.DeleteStudent)
			}

			// Graduates
			graduates := protected.Group("/graduates")
			{
				graduates.GET("", controllers.GetGraduates)
				graduates.GET("/:id", controllers.GetGraduate)
				graduates.POST("", controllers.CreateGraduate)
				graduates.PUT("/:id", controllers.UpdateGraduate)
				graduates.DELETE("/:id", controllers.DeleteGraduate)
			}

			// Properties
			properties := protected.Group("/properties")
			{
				properties.GET("", controllers.GetProperties)
				properties.GET("/:id", controllers.GetProperty)
				properties.POST("", controllers.CreateProperty)
				properties.PUT("/:id", controllers.UpdateProperty)
				properties.DELETE("/:id", controllers.DeleteProperty)
			}

			// GBU statistics
			gbu := protected.Group("/gbu-data")
			{
				gbu.GET("", controllers.GetGBUData)
				gbu.GET("/:id", controllers.GetGBUDataRow)
				gbu.POST("", controllers.CreateGBUData)
				gbu.PUT("/:id", controllers.UpdateGBUData)
				gbu.DELETE("/:id", controllers.DeleteGBUData)
			}
			protected.GET("/reports/gbu-summary", controllers.GetGBUSummary)

			// Notifications
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", controllers.GetNotifications)
				notifications.GET("/counter", controllers.GetNotificationCounter)
				notifications.POST("", controllers.CreateNotification)
				notifications.POST("/events/attendance-miss", controllers.NotifyAttendanceMiss)
				notifications.PUT("/read-all", controllers.MarkAllNotificationsRead)
				notifications.PUT("/:id/read", controllers.MarkNotificationRead)
				notifications.DELETE("/:id", controllers.DeleteNotification)

				notifications.GET("/preferences", controllers.GetNotificationPreferences)
				notifications.PUT("/preferences", controllers.UpdateNotificationPreferences)
			}
		}
	}
}

package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/login", handler.Login)
		api.POST("/stats", handler.SubmitStats)

		user := api.Group("/user/:token")
		{
			user.GET("/logout", handler.Logout)
			user.POST("/refresh", handler.TriggerRefresh)

			user.GET("/classes", handler.GetClasses)
			user.GET("/classes/:class_id/subjects", handler.GetSubjects)
			user.GET("/classes/:class_id/subjects/:subject_id", handler.GetSubject)
			user.GET("/classes/:class_id/tests", handler.GetTests)
			user.GET("/classes/:class_id/absences", handler.GetAbsences)
			user.GET("/classes/:class_id/export", handler.ExportClass)

			user.GET("/settings", handler.GetSettings)
			user.PUT("/settings", handler.UpdateSettings)

			user.GET("/notifications", handler.GetNotifications)
			user.POST("/notifications", handler.ScheduleNotifications)
			user.DELETE("/notifications", handler.DeleteNotifications)
			user.DELETE("/notifications/:id", handler.DeleteNotification)
		}
	}
}

// NewRouter builds the engine with the default middleware chain.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(), LoggingMiddleware(), CORSMiddleware())
	SetupRoutes(router, handler)
	return router
}

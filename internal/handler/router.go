package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/edupanel/school-portal-api/internal/middleware"
	"github.com/edupanel/school-portal-api/internal/models"
	"github.com/edupanel/school-portal-api/internal/service"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Students    *StudentHandler
	Teachers    *TeacherHandler
	Courses     *CourseHandler
	Enrollments *EnrollmentHandler
	Metrics     *MetricsHandler
}

// RegisterRoutes mounts the API surface on the engine. Role gates sit on
// the routes; ownership rules are enforced inside the services.
func RegisterRoutes(r *gin.Engine, prefix string, authService *service.AuthService, h Handlers, enableDocs bool) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if enableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.GET("/me", middleware.JWT(authService), h.Auth.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))

	users := authed.Group("/users", middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", h.Users.List)
		users.GET("/:id", h.Users.Get)
	}

	students := authed.Group("/students")
	{
		students.GET("", middleware.RequireRoles(models.RoleAdmin), h.Students.List)
		students.GET("/:id", h.Students.Get)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), h.Students.Create)
		students.PUT("/:id", h.Students.Update)
		students.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Students.Delete)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("", middleware.RequireRoles(models.RoleAdmin), h.Teachers.List)
		teachers.GET("/:id", h.Teachers.Get)
		teachers.POST("", middleware.RequireRoles(models.RoleAdmin), h.Teachers.Create)
		teachers.PUT("/:id", h.Teachers.Update)
		teachers.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Teachers.Delete)
	}

	courses := authed.Group("/courses")
	{
		courses.GET("", h.Courses.List)
		courses.GET("/:id", h.Courses.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Courses.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Courses.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Courses.Delete)
	}

	enrollments := authed.Group("/enrollments")
	{
		enrollments.GET("", h.Enrollments.List)
		enrollments.GET("/export", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Enrollments.Export)
		enrollments.GET("/:id", h.Enrollments.Get)
		enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), h.Enrollments.Create)
		enrollments.PUT("/:id/grade", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), h.Enrollments.Grade)
		enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), h.Enrollments.Delete)
	}
}

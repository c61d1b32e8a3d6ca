package app

import (
	"github.com/gin-gonic/gin"
	"github.com/musama5293/NPI-Portal-sub001/docs"
	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/middleware"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		// 候选人/主管 作答相关接口，权限在服务层按测评归属校验
		a.registerAssignmentRoutes(authGroup, c)

		// 主管接口
		supervisor := authGroup.Group("/supervisor")
		supervisor.Use(middleware.RoleMiddleware(model.RoleSupervisor))
		{
			supervisor.GET("/assignments", c.assignment.SupervisorAssignments)
		}
	}

	// 3. 管理员相关接口
	a.registerAdminRoutes(authGroup, c)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerAssignmentRoutes(group *gin.RouterGroup, c *controllers) {
	assignments := group.Group("/assignments")
	{
		assignments.GET("", c.assignment.List)
		assignments.GET("/:id", c.assignment.Get)

		assignments.POST("/:id/start", c.assignment.Start)
		assignments.GET("/:id/questions", c.assignment.GetQuestions)
		assignments.POST("/:id/answers", c.assignment.SubmitAnswer)
		assignments.POST("/:id/activity", c.assignment.LogActivity)
		assignments.PUT("/:id/progress", c.assignment.SaveProgress)
		assignments.POST("/:id/submit", c.assignment.Submit)

		assignments.GET("/:id/scores", c.assignment.GetScores)
		assignments.GET("/:id/linked", c.assignment.GetLinked)

		assignments.POST("/:id/analysis", c.analysis.Generate)
		assignments.GET("/:id/analysis", c.analysis.Get)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	// RoleMiddleware 不带角色时只放行管理员
	adminOnly := middleware.RoleMiddleware()

	assignments := group.Group("/assignments")
	assignments.Use(adminOnly)
	{
		assignments.POST("", c.assignment.Create)
		assignments.POST("/batch", c.assignment.CreateBatch)
		assignments.DELETE("/:id", c.assignment.Delete)
		assignments.POST("/:id/complete", c.assignment.Complete)
		assignments.POST("/:id/regenerate", c.assignment.Regenerate)
	}

	admin := group.Group("/admin")
	admin.Use(adminOnly)
	{
		admin.POST("/assignments/reconcile-links", c.assignment.ReconcileLinks)
	}
}

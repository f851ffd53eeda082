package app

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/middleware"
	"ai_interviewer_backend/internal/model"
	"ai_interviewer_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 候选人会话路由，凭面试令牌访问
	chat := router.Group("/api/chat")
	{
		chat.POST("/start/:token", c.chat.StartSession)
		chat.POST("/:id/message", c.chat.SubmitMessage)
		chat.GET("/:id/messages", c.chat.Messages)
	}

	// 招聘端路由，需要登录
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		interviews := authGroup.Group("/interviews")
		interviews.Use(middleware.RoleMiddleware(model.Recruiter))
		{
			interviews.POST("", c.interview.Create)
			interviews.GET("", c.interview.List)
			interviews.GET("/:id", c.interview.Get)
			interviews.DELETE("/:id", c.interview.Delete)
			interviews.POST("/:id/documents", c.interview.UploadDocument)
			interviews.POST("/:id/analyze", c.interview.AnalyzeMatch)
			interviews.POST("/:id/assign", c.interview.Assign)
			interviews.POST("/:id/complete", c.interview.Complete)
			interviews.GET("/:id/report", c.interview.Report)
			interviews.GET("/:id/transcript", c.interview.Transcript)
			interviews.GET("/:id/costs", c.interview.Costs)
		}

		// 全局成本统计仅管理员可见
		authGroup.GET("/costs", middleware.RoleMiddleware(model.Admin), c.interview.GlobalCosts)
	}
}

package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/skillscope-backend/internal/handlers"
	"github.com/yungbote/skillscope-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName     string
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	SkillHandler    *handlers.SkillHandler
	SelfEvalHandler *handlers.SelfEvalHandler
	ReviewHandler   *handlers.ReviewHandler
	SSEHandler      *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	// SSE
	protected.GET("/sse/stream", cfg.SSEHandler.Stream)

	api := protected.Group("/api")
	// Skills
	api.GET("/skills", cfg.SkillHandler.ListSkills)
	api.GET("/skills/:id", cfg.SkillHandler.GetSkill)
	api.POST("/skills", cfg.AuthMiddleware.RequireTeacher(), cfg.SkillHandler.CreateSkill)
	// Self evaluations
	api.POST("/skills/:id/self-evaluations", cfg.SelfEvalHandler.StartSession)
	api.GET("/self-evaluations/:id", cfg.SelfEvalHandler.GetSession)
	api.POST("/self-evaluations/:id/turns", cfg.SelfEvalHandler.SubmitTurn)
	// Teacher review
	review := api.Group("/")
	review.Use(cfg.AuthMiddleware.RequireTeacher())
	review.GET("/notifications", cfg.ReviewHandler.ListNotifications)
	review.POST("/notifications/:id/read", cfg.ReviewHandler.MarkNotificationRead)
	review.GET("/safety-incidents", cfg.ReviewHandler.ListIncidents)
	review.POST("/safety-incidents/:id/resolve", cfg.ReviewHandler.ResolveIncident)

	return router
}

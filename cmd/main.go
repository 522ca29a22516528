package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/yungbote/skillscope-backend/internal/db"
	"github.com/yungbote/skillscope-backend/internal/handlers"
	"github.com/yungbote/skillscope-backend/internal/logger"
	"github.com/yungbote/skillscope-backend/internal/middleware"
	"github.com/yungbote/skillscope-backend/internal/observability"
	"github.com/yungbote/skillscope-backend/internal/openai"
	"github.com/yungbote/skillscope-backend/internal/repos"
	"github.com/yungbote/skillscope-backend/internal/sendgrid"
	"github.com/yungbote/skillscope-backend/internal/server"
	"github.com/yungbote/skillscope-backend/internal/services"
	"github.com/yungbote/skillscope-backend/internal/sse"
	"github.com/yungbote/skillscope-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	shutdownTracing := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "skillscope-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if shutdownTracing != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()
	}

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	maxStudentTurns := utils.GetEnvAsInt("SELF_EVAL_MAX_STUDENT_TURNS", 3, log)
	classifierTimeout := utils.GetEnvAsInt("SAFETY_CLASSIFIER_TIMEOUT_SECONDS", 8, log)
	generatorTimeout := utils.GetEnvAsInt("TUTOR_GENERATOR_TIMEOUT_SECONDS", 30, log)
	appPort := utils.GetEnv("APP_PORT", "8080", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	skillRepo := repos.NewComponentSkillRepo(thePG, log)
	sessionRepo := repos.NewSelfEvaluationSessionRepo(thePG, log)
	incidentRepo := repos.NewSafetyIncidentRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)

	// SSE
	log.Info("Setting up SSE hub now...")
	sseHub := sse.NewSSEHub(log)

	// Services
	log.Info("Setting up Services from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	mailer, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("Email delivery disabled", "error", err)
		mailer = nil
	}
	safetyPolicy, err := services.LoadSafetyPolicy()
	if err != nil {
		log.Error("Could not load safety policy", "error", err)
		os.Exit(1)
	}

	authService := services.NewAuthService(
		thePG,
		log,
		userRepo,
		userTokenRepo,
		jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second,
		time.Duration(refreshTokenTTL)*time.Second,
	)
	skillService := services.NewSkillService(thePG, log, skillRepo)
	classifier := services.NewSafetyClassifier(log, openaiClient, safetyPolicy, time.Duration(classifierTimeout)*time.Second)
	generator := services.NewTutorResponseGenerator(log, openaiClient, time.Duration(generatorTimeout)*time.Second)
	escalationService := services.NewEscalationService(
		log,
		userRepo,
		incidentRepo,
		notificationRepo,
		sseHub,
		mailer,
	)
	sessionLocker := services.NewSessionLocker(log)
	selfEvalService := services.NewSelfEvaluationService(
		thePG,
		log,
		services.SelfEvaluationConfig{
			MaxStudentTurns:   maxStudentTurns,
			ClassifierTimeout: time.Duration(classifierTimeout) * time.Second,
			GeneratorTimeout:  time.Duration(generatorTimeout) * time.Second,
		},
		skillRepo,
		sessionRepo,
		sessionLocker,
		classifier,
		generator,
		escalationService,
	)
	reviewService := services.NewReviewService(thePG, log, incidentRepo, notificationRepo, sseHub)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	skillHandler := handlers.NewSkillHandler(skillService)
	selfEvalHandler := handlers.NewSelfEvalHandler(selfEvalService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	sseHandler := handlers.NewSSEHandler(log, sseHub)
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		ServiceName:     "skillscope-backend",
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		SkillHandler:    skillHandler,
		SelfEvalHandler: selfEvalHandler,
		ReviewHandler:   reviewHandler,
		SSEHandler:      sseHandler,
	})

	log.Info("Starting server", "port", appPort)
	if err := router.Run(":" + appPort); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}

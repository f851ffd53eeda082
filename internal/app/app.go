package app

import (
	"ai_interviewer_backend/internal/config"
	"ai_interviewer_backend/internal/controller"
	"ai_interviewer_backend/internal/repository"
	"ai_interviewer_backend/internal/service"
	"ai_interviewer_backend/pkg/database"
	"ai_interviewer_backend/pkg/logger"
	"ai_interviewer_backend/pkg/monitoring"
	"ai_interviewer_backend/pkg/security"
	"ai_interviewer_backend/pkg/tracing"
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client
}

type repositories struct {
	user      *repository.UserRepository
	interview *repository.InterviewRepository
	message   *repository.MessageRepository
	llmUsage  *repository.LLMUsageRepository
}

type services struct {
	auth      *service.AuthService
	storage   *service.StorageService
	ai        *service.AIService
	cost      *service.CostService
	analysis  *service.AnalysisService
	interview *service.InterviewService
	session   *service.SessionService
}

type controllers struct {
	auth      *controller.AuthController
	interview *controller.InterviewController
	chat      *controller.ChatController
	health    *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		interview: repository.NewInterviewRepository(db),
		message:   repository.NewMessageRepository(db),
		llmUsage:  repository.NewLLMUsageRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)

	s.ai = service.NewAIService(cfg.AI)
	s.cost = service.NewCostService(repos.llmUsage, rdb, cfg.AI)
	s.ai.SetUsageRecorder(s.cost)

	s.analysis = service.NewAnalysisService(s.ai)
	s.interview = service.NewInterviewService(repos.interview, s.storage, s.analysis, cfg)

	evaluation := service.NewEvaluationService(s.ai)
	question := service.NewQuestionService(s.ai)
	narrator := service.NewNarratorService(s.ai)
	report := service.NewReportService(narrator)

	s.session = service.NewSessionService(
		repos.interview,
		repos.message,
		evaluation,
		question,
		report,
		cfg.Interview,
	)
	s.session.SetClassifier(service.NewClassificationService(s.ai))
	if cfg.Interview.IntegrityAgentEnabled {
		s.session.SetIntegrityJudge(service.NewIntegrityService(s.ai))
	}

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		interview: controller.NewInterviewController(s.interview, s.session, s.cost),
		chat:      controller.NewChatController(s.session),
		health:    controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	windowMinutes := cfg.RateLimit.WindowMinutes
	if windowMinutes <= 0 {
		windowMinutes = 1
	}
	router.Use(security.RateLimiter(maxRequests, time.Duration(windowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != "release"
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// Redis只用于聚合缓存，连不上时降级运行
		logger.Log.Warn("Failed to initialize redis, running without cache", zap.Error(err))
		rdb = nil
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	if cfg.MigrateOnly {
		return app
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(services, db)

	monitoring.Init()

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("ai-interviewer", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// ApplyConfig 热更新运行中可安全调整的配置项。
// 只覆盖新面试的默认配置，已在进行中的会话不受影响。
func (a *App) ApplyConfig(newCfg *config.Config) {
	a.Config.Interview.DefaultTargetQuestions = newCfg.Interview.DefaultTargetQuestions
	a.Config.Interview.DefaultDifficulty = newCfg.Interview.DefaultDifficulty
	a.Config.Interview.TokenTTLHours = newCfg.Interview.TokenTTLHours
	logger.Log.Info("Config reloaded",
		zap.Int("defaultTargetQuestions", newCfg.Interview.DefaultTargetQuestions),
		zap.Float64("defaultDifficulty", newCfg.Interview.DefaultDifficulty),
		zap.Int("tokenTTLHours", newCfg.Interview.TokenTTLHours))
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/controller"
	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/internal/service"
	"github.com/musama5293/NPI-Portal-sub001/pkg/configwatcher"
	"github.com/musama5293/NPI-Portal-sub001/pkg/database"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	"github.com/musama5293/NPI-Portal-sub001/pkg/security"
	"github.com/musama5293/NPI-Portal-sub001/pkg/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const configFile = "configs/config.yaml"

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
	tracer          *sdktrace.TracerProvider
	stop            chan struct{}
}

type repositories struct {
	user       *repository.UserRepository
	candidate  *repository.CandidateRepository
	test       *repository.TestRepository
	question   *repository.QuestionRepository
	assignment *repository.AssignmentRepository
	analysis   *repository.AnalysisRepository
}

type services struct {
	auth         *service.AuthService
	storage      service.StorageProvider
	assignment   *service.AssignmentService
	linked       *service.LinkedService
	analysis     *service.AnalysisService
	psychometric *service.PsychometricClient
	webhook      *service.WebhookSink
	notification *service.NotificationService
	expiry       *service.ExpiryService
}

type controllers struct {
	auth       *controller.AuthController
	assignment *controller.AssignmentController
	analysis   *controller.AnalysisController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:       repository.NewUserRepository(db),
		candidate:  repository.NewCandidateRepository(db),
		test:       repository.NewTestRepository(db),
		question:   repository.NewQuestionRepository(db),
		assignment: repository.NewAssignmentRepository(db),
		analysis:   repository.NewAnalysisRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageProvider(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.auth = service.NewAuthService(repos.user, repos.candidate, cfg)

	s.webhook = service.NewWebhookSink(cfg.Notification.WebhookURL)
	s.notification = service.NewNotificationService(s.webhook, &cfg.Notification)

	s.assignment = service.NewAssignmentService(
		repos.assignment,
		repos.question,
		repos.test,
		repos.candidate,
		s.notification,
		cfg.Assignment.FeedbackIDOffset,
	)
	s.linked = service.NewLinkedService(repos.assignment)

	s.psychometric = service.NewPsychometricClient(&cfg.Analysis)
	s.analysis = service.NewAnalysisService(
		repos.assignment,
		repos.question,
		repos.candidate,
		repos.analysis,
		s.psychometric,
		rdb,
		s.storage,
	)

	s.expiry = service.NewExpiryService(repos.assignment)

	// 热更新：分析服务地址/超时与通知 webhook
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.psychometric.Configure(&newCfg.Analysis)
		s.webhook.SetURL(newCfg.Notification.WebhookURL)
	})

	return s, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:       controller.NewAuthController(s.auth),
		assignment: controller.NewAssignmentController(s.assignment, s.linked),
		analysis:   controller.NewAnalysisController(s.analysis),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.RequestID())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	s.notification.Start(context.Background())

	if err := s.expiry.Start(a.Config.Assignment.ExpirySchedule); err != nil {
		logger.Log.Error("Failed to schedule expiry sweep", zap.Error(err))
	}

	if err := configwatcher.WatchConfig(filepath.FromSlash(configFile), a.reloadConfig, a.stop); err != nil {
		logger.Log.Warn("Config hot reload disabled", zap.Error(err))
	}
}

func (a *App) reloadConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// build 组装仓储、服务与路由，不启动任何后台任务
func build(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		stop:   make(chan struct{}),
	}

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		return nil, err
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode != gin.ReleaseMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	return app, nil
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 锁退化为进程内 singleflight
		logger.Log.Warn("Redis unavailable, continuing without distributed lock", zap.Error(err))
		rdb = nil
	}

	app, err := build(cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if cfg.MigrateOnly {
		return app
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.startBackgroundTasks(app.services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// 先停止接收请求，再排空通知队列
	close(a.stop)
	a.services.expiry.Stop()
	a.services.notification.Stop()

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}

	log.Println("Server exiting")
}

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Soule73/evalium-sub002/internal/config"
	"github.com/Soule73/evalium-sub002/internal/database"
	"github.com/Soule73/evalium-sub002/internal/handler"
	"github.com/Soule73/evalium-sub002/internal/middleware"
	"github.com/Soule73/evalium-sub002/internal/observability"
	"github.com/Soule73/evalium-sub002/internal/repository"
	"github.com/Soule73/evalium-sub002/internal/router"
	"github.com/Soule73/evalium-sub002/internal/service"
	cloud "github.com/Soule73/evalium-sub002/pkg/cloudinary"
	"github.com/Soule73/evalium-sub002/pkg/objectstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger, logCloser := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DatabaseURL, database.DefaultPool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to nats")
		}
		defer natsConn.Close()
	}

	files, err := newFileStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to configure answer file storage")
	}

	validate := service.NewValidator()

	assessmentRepo := repository.NewAssessmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	cache := service.NewRedisResultCache(redisClient, cfg.StatsCacheTTL, logger)
	bus := service.NewAssignmentEventBus(redisClient, natsConn, cfg.EventsChannel, logger)
	bus.Start(ctx)
	authorizer := service.NewRoleAuthorizer()
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)

	assessments := service.NewAssessmentService(assessmentRepo, enrollmentRepo, validate, cache, activity, authorizer, logger)
	assignments := service.NewAssignmentService(service.AssignmentServiceDeps{
		Assessments: assessmentRepo,
		Assignments: assignmentRepo,
		Enrollments: enrollmentRepo,
		Recorder:    service.NewAnswerRecorder(files, cfg.MaxAnswerFileBytes(), logger),
		Timing:      service.NewTimingEvaluator(cfg.DefaultDurationMinutes),
		Cache:       cache,
		Events:      bus,
		Audit:       activity,
		Authorizer:  authorizer,
	}, logger)
	grading := service.NewGradingService(service.GradingServiceDeps{
		Assessments: assessmentRepo,
		Assignments: assignmentRepo,
		Validator:   validate,
		Cache:       cache,
		Events:      bus,
		Audit:       activity,
		Authorizer:  authorizer,
	}, logger)
	monitor, err := service.NewSecurityMonitor(repository.NewSecurityEventRepository(db), assignmentRepo, assignments, bus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build security monitor")
	}
	stats := service.NewStatsService(assessmentRepo, assignmentRepo, enrollmentRepo, cache, logger)
	grades := service.NewGradeAggregator(repository.NewGradeRepository(db), cache, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxAnswerFileBytes()) + 1024*1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.AllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AttemptHandler:    handler.NewAttemptHandler(assignments, assessments, monitor, validate, cfg.MaxAnswerFileBytes(), logger),
		AssessmentHandler: handler.NewAssessmentHandler(assessments, logger),
		GradingHandler:    handler.NewGradingHandler(assignments, grading, monitor, validate, logger),
		StatsHandler:      handler.NewStatsHandler(stats, authorizer, logger),
		GradesHandler:     handler.NewGradesHandler(grades, logger),
		MonitorHandler:    handler.NewMonitorHandler(assessments, stats, bus, logger),
		ActivityHandler:   handler.NewActivityHandler(activity, logger),
		HealthProbes:      healthProbes(db, redisClient, natsConn),
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		ViolationLimit:    cfg.ViolationRatePerMinute,
		ViolationWindow:   time.Minute,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	logger.Info().Str("address", cfg.HTTPAddress()).Str("env", cfg.AppEnv).Msg("server started")

	waitForShutdown(ctx, app, logger)
}

func newFileStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.FileStore, error) {
	switch cfg.StorageDriver {
	case config.StorageDriverCloudinary:
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	case config.StorageDriverMinio:
		return objectstore.New(ctx, objectstore.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		}, logger)
	default:
		logger.Warn().Msg("answer file storage disabled; file questions will reject uploads")
		return nil, nil
	}
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(ctx context.Context, app *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/creatia-api/api/swagger"
	"github.com/noah-isme/creatia-api/internal/handler"
	"github.com/noah-isme/creatia-api/internal/repository"
	"github.com/noah-isme/creatia-api/internal/router"
	"github.com/noah-isme/creatia-api/internal/service"
	"github.com/noah-isme/creatia-api/pkg/cache"
	"github.com/noah-isme/creatia-api/pkg/config"
	"github.com/noah-isme/creatia-api/pkg/database"
	"github.com/noah-isme/creatia-api/pkg/jobs"
	"github.com/noah-isme/creatia-api/pkg/logger"
	"github.com/noah-isme/creatia-api/pkg/notify"
	"github.com/noah-isme/creatia-api/pkg/storage"
)

// @title Creatia API
// @version 1.0.0
// @description Research group workspace: tasks, project tree, mailbox and chat
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			logr.Fatal("schema bootstrap failed", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	store, err := newStore(cfg.Storage)
	if err != nil {
		logr.Fatal("storage unavailable", zap.Error(err))
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	sender, closeSender := newSender(cfg.Notify, logr)
	defer closeSender()
	mux := jobs.NewMux()
	queue := jobs.NewQueue("notifications", mux.Process, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		OnResult: func(job jobs.Job, err error) {
			metricsSvc.RecordNotification(job.Type, err)
		},
	})
	dispatcher := notify.NewDispatcher(sender, queue, logr)
	dispatcher.Register(mux)
	queue.Start(ctx)
	defer queue.Stop()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	mailRepo := repository.NewMailRepository(db)
	chatRepo := repository.NewChatRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ProjectTreeTTL, logr, redisClient != nil)
	fileSvc := service.NewFileService(store, storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL), cfg.Storage.MaxFileSizeBytes, logr)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, service.UserCascade{
		Tasks:    taskRepo,
		Mails:    mailRepo,
		Chat:     chatRepo,
		Projects: projectRepo,
	}, db, fileSvc, validate, logr)
	roleSvc := service.NewRoleService(roleRepo, userRepo, logr)
	profileSvc := service.NewProfileService(userRepo, taskRepo, fileSvc, validate, logr)
	taskSvc := service.NewTaskService(taskRepo, userRepo, db, fileSvc, dispatcher, cfg.Notify.BaseURL, logr)
	treeSvc := service.NewProjectTreeService(projectRepo, userRepo, db, cacheSvc, cfg.Cache.ProjectTreeTTL, logr)
	mailSvc := service.NewMailService(mailRepo, userRepo, dispatcher, metricsSvc, cfg.Mail.TrashRetention, cfg.Notify.BaseURL, logr)
	chatSvc := service.NewChatService(chatRepo, userRepo, logr)
	reportSvc := service.NewReportService(userRepo, taskRepo, logr)

	engine := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Roles:       handler.NewRoleHandler(roleSvc),
		Profile:     handler.NewProfileHandler(profileSvc),
		Tasks:       handler.NewTaskHandler(taskSvc),
		ProjectTree: handler.NewProjectTreeHandler(treeSvc),
		Mail:        handler.NewMailHandler(mailSvc),
		Chat:        handler.NewChatHandler(chatSvc),
		Reports:     handler.NewReportHandler(reportSvc),
		Files:       handler.NewFileHandler(fileSvc),
		Metrics:     handler.NewMetricsHandler(metricsSvc),
	}, router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         authSvc,
		Audit:          userRepo,
		Metrics:        metricsSvc,
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

func newStore(cfg config.StorageConfig) (storage.Store, error) {
	if cfg.Driver == config.StorageDriverMinio {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewLocalStorage(cfg.Dir)
}

func newSender(cfg config.NotifyConfig, logr *zap.Logger) (notify.Sender, func()) {
	switch cfg.Driver {
	case config.NotifyDriverAMQP:
		s := notify.NewAMQPSender(cfg.AMQPURL, cfg.AMQPQueue)
		return s, func() { _ = s.Close() }
	case config.NotifyDriverLog:
		return notify.NewLogSender(logr), func() {}
	default:
		return notify.NewHTTPSender(notify.HTTPConfig{
			SendGridAPIKey:   cfg.SendGridAPIKey,
			EmailFrom:        cfg.EmailFrom,
			TwilioAccountSID: cfg.TwilioAccountSID,
			TwilioAuthToken:  cfg.TwilioAuthToken,
			TwilioFromNumber: cfg.TwilioFromNumber,
			Timeout:          cfg.HTTPTimeout,
		}), func() {}
	}
}

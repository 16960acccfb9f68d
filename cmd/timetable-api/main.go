package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/eduschedule-api/api/swagger"
	"github.com/noah-isme/eduschedule-api/internal/handler"
	internalmiddleware "github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/oracle"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	"github.com/noah-isme/eduschedule-api/internal/service"
	"github.com/noah-isme/eduschedule-api/pkg/cache"
	"github.com/noah-isme/eduschedule-api/pkg/config"
	"github.com/noah-isme/eduschedule-api/pkg/database"
	"github.com/noah-isme/eduschedule-api/pkg/export"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
	"github.com/noah-isme/eduschedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/eduschedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/eduschedule-api/pkg/middleware/requestid"
	"github.com/noah-isme/eduschedule-api/pkg/storage"
)

// @title EduSchedule API
// @version 1.0.0
// @description Weekly school timetable generation, validation and publishing.
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to open database", "error", err, "driver", cfg.Database.Driver)
	}
	defer db.Close() //nolint:errcheck

	schoolStore, closeFallback := buildSchoolStore(cfg, db, logr)
	defer closeFallback()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.SnapshotTTL, logr, cacheRepo != nil)

	grid := scheduler.DefaultGrid()
	if cfg.Scheduler.GridFile != "" {
		grid, err = scheduler.LoadGridFile(cfg.Scheduler.GridFile)
		if err != nil {
			logr.Sugar().Fatalw("failed to load grid", "error", err, "path", cfg.Scheduler.GridFile)
		}
	}

	mode, err := scheduler.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		logr.Sugar().Fatalw("invalid scheduler mode", "error", err)
	}

	var engineOracle scheduler.Oracle
	if cfg.Oracle.APIKey != "" {
		gemini, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
			APIKey:      cfg.Oracle.APIKey,
			Model:       cfg.Oracle.Model,
			Temperature: float32(cfg.Oracle.Temperature),
		}, logr)
		if err != nil {
			logr.Sugar().Warnw("gemini oracle unavailable, using direct search", "error", err)
		} else {
			engineOracle = gemini
			defer gemini.Close() //nolint:errcheck
		}
	}
	engine := scheduler.NewEngine(engineOracle, logr, scheduler.Options{
		Mode:          mode,
		Budget:        scheduler.Budget{MaxSteps: cfg.Scheduler.MaxSteps, Timeout: cfg.Scheduler.Timeout},
		OracleTimeout: cfg.Oracle.Timeout,
	})

	timetableRepo := repository.NewTimetableRepository(db)
	assignmentRepo := repository.NewTimetableAssignmentRepository(db)

	domainSvc := service.NewDomainService(schoolStore, assignmentRepo, cacheSvc, metricsSvc, validate, logr, service.DomainConfig{
		SnapshotTTL:   cfg.Cache.SnapshotTTL,
		SeedWhenEmpty: true,
	})

	fileStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err, "dir", cfg.Exports.StorageDir)
	}
	exportSvc := service.NewExportService(
		fileStorage,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
	)
	exportSvc.StartCleanup(ctx, cfg.Exports.CleanupInterval)

	timetableSvc := service.NewTimetableService(
		domainSvc,
		engine,
		timetableRepo,
		assignmentRepo,
		timetableRepo,
		cacheSvc,
		exportSvc,
		metricsSvc,
		validate,
		logr,
		service.TimetableConfig{Grid: grid, ProposalTTL: cfg.Scheduler.ProposalTTL},
	)

	jobSvc := service.NewGenerationJobService(timetableSvc, logr, service.GenerationJobConfig{})
	var queue *jobs.Queue
	if cfg.Scheduler.Enabled {
		queue = jobs.NewQueue("timetable-generation", jobSvc.Handle, jobs.QueueConfig{
			Workers: cfg.Scheduler.Workers,
			Logger:  logr,
		})
		jobSvc.AttachQueue(queue)
		queue.Start(ctx)
	}

	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "eduschedule-api",
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.WithResponseMeta())
	r.Use(internalmiddleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		logger:     logr,
		auth:       authSvc,
		metrics:    metricsHandler,
		domain:     handler.NewDomainHandler(domainSvc),
		timetables: handler.NewTimetableHandler(timetableSvc),
		jobs:       handler.NewGenerationJobHandler(jobSvc),
		exports:    handler.NewExportHandler(exportSvc),
		authH:      handler.NewAuthHandler(authSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "mode", mode, "oracle", engine.HasOracle())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

type routeDeps struct {
	logger     *zap.Logger
	auth       *service.AuthService
	metrics    *handler.MetricsHandler
	domain     *handler.DomainHandler
	timetables *handler.TimetableHandler
	jobs       *handler.GenerationJobHandler
	exports    *handler.ExportHandler
	authH      *handler.AuthHandler
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	api.GET("/exports/:token", d.exports.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(d.auth))
	secured.GET("/auth/me", d.authH.Me)
	secured.POST("/auth/tokens", internalmiddleware.RequireRoles(models.RoleSuperAdmin), internalmiddleware.Audit(d.logger, "issue", "token"), d.authH.IssueToken)

	read := secured.Group("", internalmiddleware.Readers())
	read.GET("/metrics/summary", d.metrics.Summary)
	read.GET("/school-data", d.domain.Snapshot)
	read.GET("/school-data/orphans", d.domain.Orphans)
	read.GET("/levels", d.domain.ListLevels)
	read.GET("/courses", d.domain.ListCourses)
	read.GET("/teachers", d.domain.ListTeachers)
	read.GET("/subjects", d.domain.ListSubjects)
	read.GET("/timetables", d.timetables.List)
	read.GET("/timetables/grid", d.timetables.Grid)
	read.GET("/timetables/proposals/:id", d.timetables.Proposal)
	read.GET("/timetables/proposals/:id/view", d.timetables.ProposalView)
	read.GET("/timetables/jobs", d.jobs.List)
	read.GET("/timetables/jobs/:id", d.jobs.Get)
	read.GET("/timetables/:id", d.timetables.Get)
	read.GET("/timetables/:id/view", d.timetables.View)
	read.POST("/timetables/validate", d.timetables.Validate)

	edit := secured.Group("", internalmiddleware.Editors())
	edit.PUT("/school-data", internalmiddleware.Audit(d.logger, "replace", "school_data"), d.domain.Replace)
	edit.POST("/levels", internalmiddleware.Audit(d.logger, "create", "level"), d.domain.CreateLevel)
	edit.PUT("/levels/:id", internalmiddleware.Audit(d.logger, "update", "level"), d.domain.UpdateLevel)
	edit.DELETE("/levels/:id", internalmiddleware.Audit(d.logger, "delete", "level"), d.domain.DeleteLevel)
	edit.POST("/courses", internalmiddleware.Audit(d.logger, "create", "course"), d.domain.CreateCourse)
	edit.PUT("/courses/:id", internalmiddleware.Audit(d.logger, "update", "course"), d.domain.UpdateCourse)
	edit.DELETE("/courses/:id", internalmiddleware.Audit(d.logger, "delete", "course"), d.domain.DeleteCourse)
	edit.POST("/teachers", internalmiddleware.Audit(d.logger, "create", "teacher"), d.domain.CreateTeacher)
	edit.PUT("/teachers/:id", internalmiddleware.Audit(d.logger, "update", "teacher"), d.domain.UpdateTeacher)
	edit.DELETE("/teachers/:id", internalmiddleware.Audit(d.logger, "delete", "teacher"), d.domain.DeleteTeacher)
	edit.POST("/subjects", internalmiddleware.Audit(d.logger, "create", "subject"), d.domain.CreateSubject)
	edit.PUT("/subjects/:id", internalmiddleware.Audit(d.logger, "update", "subject"), d.domain.UpdateSubject)
	edit.DELETE("/subjects/:id", internalmiddleware.Audit(d.logger, "delete", "subject"), d.domain.DeleteSubject)

	edit.POST("/timetables/generate", d.timetables.Generate)
	edit.POST("/timetables/repair", d.timetables.Repair)
	edit.POST("/timetables/jobs", internalmiddleware.Audit(d.logger, "submit", "generation_job"), d.jobs.Submit)
	edit.DELETE("/timetables/proposals", internalmiddleware.Audit(d.logger, "purge", "proposal"), d.timetables.PurgeProposals)
	edit.POST("/timetables", internalmiddleware.Audit(d.logger, "save", "timetable"), d.timetables.Save)
	edit.POST("/timetables/:id/publish", internalmiddleware.Audit(d.logger, "publish", "timetable"), d.timetables.Publish)
	edit.POST("/timetables/:id/revalidate", d.timetables.Revalidate)
	edit.POST("/timetables/:id/export", internalmiddleware.Audit(d.logger, "export", "timetable"), d.timetables.Export)
	edit.DELETE("/timetables/:id", internalmiddleware.Audit(d.logger, "delete", "timetable"), d.timetables.Delete)
}

// buildSchoolStore returns the primary school data store, wrapped with a
// local SQLite mirror when one is configured.
func buildSchoolStore(cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (repository.SchoolDataGateway, func()) {
	primary := repository.NewSchoolDataRepository(db)
	path := cfg.Persistence.FallbackSQLitePath
	if path == "" || cfg.Database.Driver == config.DriverSQLite {
		return primary, func() {}
	}

	local, err := database.NewSQLite(path)
	if err == nil {
		err = database.EnsureSchema(local)
	}
	if err != nil {
		logr.Sugar().Warnw("local fallback store unavailable", "error", err, "path", path)
		return primary, func() {}
	}
	return repository.NewFallbackGateway(primary, repository.NewSchoolDataRepository(local), logr), func() { _ = local.Close() }
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/database"
	"github.com/testport/testport-backend/internal/handler"
	"github.com/testport/testport-backend/internal/logger"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/router"
	"github.com/testport/testport-backend/internal/service"
	"github.com/testport/testport-backend/internal/validator"
	"github.com/testport/testport-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting TestPort Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	learnerRepo := repository.NewLearnerRepository(pool)
	facultyRepo := repository.NewFacultyRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	subjectRepo := repository.NewSubjectRepository(pool)
	settingRepo := repository.NewSettingRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool, rdb)
	dashboardRepo := repository.NewDashboardRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	learnerService := service.NewLearnerService(learnerRepo, authService)
	facultyService := service.NewFacultyService(facultyRepo, authService)
	testService := service.NewTestService(testRepo, questionRepo, rdb, log)
	questionService := service.NewQuestionService(questionRepo, testRepo)
	sessionService := service.NewSessionService(sessionRepo, testRepo, testService, rdb, cfg, log)
	judgeService := service.NewJudgeService(cfg, log)
	mediaService := service.NewMediaService(cfg)
	subjectService := service.NewSubjectService(subjectRepo)
	settingService := service.NewSettingService(settingRepo)
	monitorService := service.NewMonitorService(monitorRepo)
	dashboardService := service.NewDashboardService(dashboardRepo)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:        handler.NewAuthHandler(authService, learnerService, facultyService),
		Portal:      handler.NewPortalHandler(sessionService, testService, questionService, judgeService),
		WS:          handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Test:        handler.NewTestHandler(testService, sessionService),
		Question:    handler.NewQuestionHandler(questionService),
		Media:       handler.NewMediaHandler(mediaService),
		Monitor:     handler.NewMonitorHandler(rdb, testService, questionService, sessionService, monitorService, log),
		Dashboard:   handler.NewDashboardHandler(dashboardService),
		Subject:     handler.NewSubjectHandler(subjectService),
		LearnerMgmt: handler.NewLearnerManagementHandler(learnerService),
		Faculty:     handler.NewFacultyHandler(facultyService),
		Setting:     handler.NewSettingHandler(settingService),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	answerWorker := worker.NewAnswerWorker(pool, rdb, log)
	scoringWorker := worker.NewScoringWorker(pool, rdb, log)
	violationWorker := worker.NewViolationWorker(pool, rdb, log)
	progressWorker := worker.NewProgressWorker(pool, rdb, log)

	go answerWorker.Start(workerCtx)
	go scoringWorker.Start(workerCtx)
	go violationWorker.Start(workerCtx)
	go progressWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load all published test papers into Redis BEFORE accepting traffic.
	// This avoids race conditions from lazy loading under thundering herd.
	if err := testService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop live countdowns. Attempt state survives in Redis, so a restart
	// resumes in-progress sessions without auto-submitting them.
	sessionService.Shutdown()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codejudge/internal/api"
	"codejudge/internal/app/notification"
	"codejudge/internal/app/realtime"
	"codejudge/internal/app/runner"
	"codejudge/internal/app/sandbox"
	"codejudge/internal/app/service"
	"codejudge/internal/common/security"
	"codejudge/internal/domain/repository"
	"codejudge/internal/platform/config"
	"codejudge/internal/platform/database"
	"codejudge/internal/platform/logger"
	"codejudge/internal/platform/queue"
)

func main() {
	// 1. Load Configuration
	config.Load()
	logger.Init(logger.Options{Dir: config.AppConfig.LogDir, Level: config.AppConfig.LogLevel})
	defer logger.Sync()
	log := logger.NewNamedLogger("main")
	log.Info("Configuration loaded.")

	// 2. Initialize JWT
	security.InitJWT(config.AppConfig.JWTKey, config.AppConfig.JWTExp)

	// 3. Initialize Database
	if err := database.Connect(); err != nil {
		log.Fatalf("Database: %v", err)
	}
	defer database.Close()

	// 4. Initialize Redis
	if err := queue.ConnectRedis(); err != nil {
		log.Fatalf("Redis: %v", err)
	}
	defer queue.CloseRedis()

	// 5. Initialize Repositories
	userRepo := repository.NewPgUserRepository(database.DB)
	problemRepo := repository.NewPgProblemRepository(database.DB)
	submissionRepo := repository.NewPgSubmissionRepository(database.DB)
	contestRepo := repository.NewPgContestRepository(database.DB)
	txRunner := database.NewTxRunner(database.DB)

	// 6. Realtime delivery and notifications
	hub := realtime.NewHub()

	var pending notification.PendingStore
	switch config.AppConfig.PendingStore {
	case "redis":
		pending = notification.NewRedisPendingStore(queue.RDB)
	default:
		pending = notification.NewMemoryPendingStore()
	}
	log.Infof("Pending notification store: %s", config.AppConfig.PendingStore)

	scheduler := notification.NewScheduler(
		contestRepo,
		userRepo,
		hub,
		pending,
		queue.NewLocker(queue.RDB),
		notification.OptionsFromConfig(config.AppConfig),
	)
	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()
	hub.OnOnline(func(userID string) {
		scheduler.SendPendingNotifications(schedulerCtx, userID)
	})
	scheduler.Start(schedulerCtx)

	// 7. Initialize Services
	languages := runner.NewDefaultRegistry()
	executor := sandbox.New(config.AppConfig.SandboxURL, config.AppConfig.SandboxTimeout)
	problemService := service.NewProblemService(problemRepo, txRunner, scheduler)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, userRepo, languages, executor, txRunner)

	// 8. Initialize Router & HTTP Server
	router := api.NewRouter(problemService, submissionService, languages, hub)

	server := &http.Server{
		Addr:         ":" + config.AppConfig.APIPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 125 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infof("Server starting on port %s", config.AppConfig.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", config.AppConfig.APIPort, err)
		}
	}()

	<-stop // Wait for interrupt signal

	log.Info("Shutting down server...")
	scheduler.Stop()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
		return
	}

	log.Info("Server and scheduler stopped gracefully.")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noticeboard/internal/api"
	"noticeboard/internal/app/service"
	"noticeboard/internal/app/worker"
	"noticeboard/internal/common/security"
	"noticeboard/internal/domain/repository"
	"noticeboard/internal/platform/config"
	"noticeboard/internal/platform/database"
	"noticeboard/internal/platform/kv"
	"noticeboard/internal/platform/logger"
	"noticeboard/internal/platform/metrics"
	"noticeboard/internal/platform/storage"
	"noticeboard/internal/platform/throttle"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", false, nil).Fatal("configuration error", "err", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogJSON, os.Stderr)
	log.Info("configuration loaded", "port", cfg.APIPort, "upload_dir", cfg.UploadDir)

	ctx := context.Background()

	// 2. Database
	if cfg.RunMigrations {
		if err := database.Migrate(ctx, cfg.DBConnStr); err != nil {
			log.Fatal("migrations failed", "err", err)
		}
		log.Info("migrations applied")
	}
	pool, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		log.Fatal("database unavailable", "err", err)
	}
	defer pool.Close()
	log.Info("database connected")

	// 3. Redis (optional)
	rdb, err := kv.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal("redis unavailable", "err", err)
	}
	if rdb != nil {
		defer rdb.Close()
		log.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		log.Warn("REDIS_ADDR not set; rate limits are per process and the sweeper runs unlocked")
	}

	// 4. Attachment store
	store, err := storage.NewOSAttachmentStore(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		log.Fatal("attachment store unavailable", "err", err)
	}

	// 5. Repositories and services
	m := metrics.New()
	tokens := security.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTExp)
	noticeRepo := repository.NewPgNoticeRepository(pool)
	userRepo := repository.NewPgUserRepository(pool)

	authService := service.NewAuthService(userRepo, security.BcryptVerifier{}, tokens, log.WithPrefix("auth"))
	noticeService := service.NewNoticeService(noticeRepo, store, m, log.WithPrefix("notices"))
	adminService := service.NewAdminService(noticeRepo, userRepo, log.WithPrefix("admin"))

	loginLimit, err := throttle.New(cfg.LoginRateLimit, rdb, log.WithPrefix("throttle"))
	if err != nil {
		log.Fatal("invalid LOGIN_RATE_LIMIT", "err", err)
	}

	// 6. Orphan sweeper
	sweeper := worker.NewOrphanSweeper(rdb, store, noticeRepo, m, log.WithPrefix("sweeper"), cfg.SweepInterval, cfg.SweepMinAge)
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	go sweeper.Start(workerCtx)

	// 7. Router & HTTP Server
	router := api.NewRouter(api.Deps{
		AuthService:    authService,
		NoticeService:  noticeService,
		AdminService:   adminService,
		Tokens:         tokens,
		Store:          store,
		Metrics:        m,
		Logger:         log,
		LoginLimit:     loginLimit,
		RequestTimeout: cfg.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("could not listen", "addr", server.Addr, "err", err)
		}
	}()

	<-stop

	log.Info("shutting down server")
	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
		return
	}
	log.Info("server and sweeper stopped gracefully")
}

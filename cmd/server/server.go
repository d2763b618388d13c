package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/urlmg/urlkeeper/cmd"
	"github.com/urlmg/urlkeeper/internal/api"
	"github.com/urlmg/urlkeeper/internal/cache"
	"github.com/urlmg/urlkeeper/internal/config"
	"github.com/urlmg/urlkeeper/internal/indexnow"
	"github.com/urlmg/urlkeeper/internal/logger"
	"github.com/urlmg/urlkeeper/internal/mail"
	"github.com/urlmg/urlkeeper/internal/models"
	"github.com/urlmg/urlkeeper/internal/monitor"
	"github.com/urlmg/urlkeeper/internal/repository"
	"github.com/urlmg/urlkeeper/internal/services"
	"github.com/urlmg/urlkeeper/internal/workers"
	"gorm.io/gorm"
)

// RunServerCmd starts the HTTP API with its background processes: the
// IndexNow submit workers and the bookmark monitor.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Starts the bookmark API server and background processes",
	Long: `Initializes the database, the cache and the mailer, starts the
IndexNow submit workers and the bookmark availability monitor, then serves
the HTTP API until interrupted.`,
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		log := logger.New(cfg.Logging.Level, cfg.Logging.Pretty)
		defer log.Sync()

		// busy_timeout keeps concurrent writers from surfacing SQLITE_BUSY;
		// TranslateError turns constraint violations into gorm sentinels the
		// repositories rely on.
		dsn := cfg.Database.Name + "?_pragma=busy_timeout(5000)"
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			log.Fatal("failed to connect to database", logger.Error(err))
		}
		if err := db.AutoMigrate(
			&models.URL{}, &models.User{}, &models.Session{},
			&models.UserTag{}, &models.Background{}, &models.Notification{},
		); err != nil {
			log.Fatal("failed to migrate database", logger.Error(err))
		}

		var store interface {
			cache.Cache
			cache.TokenStore
		}
		if cfg.Cache.RedisAddr != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			redisStore, err := cache.NewRedisStore(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
			cancel()
			if err != nil {
				log.Fatal("failed to connect to redis", logger.Error(err))
			}
			defer redisStore.Close()
			store = redisStore
			log.Info("cache backend: redis", logger.String("addr", cfg.Cache.RedisAddr))
		} else {
			store = cache.NewMemoryStore()
			log.Info("cache backend: in-memory")
		}

		var mailer mail.Mailer = mail.NopMailer{}
		if cfg.Mail.Host != "" {
			mailer = mail.NewSMTPMailer(mail.Config{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
				From:     cfg.Mail.From,
			})
			log.Info("mail backend: smtp", logger.String("host", cfg.Mail.Host))
		} else {
			log.Warn("mail backend: none, OTP emails will be discarded")
		}

		urlRepo := repository.NewURLRepository(db)
		userRepo := repository.NewUserRepository(db)
		tagRepo := repository.NewTagRepository(db)
		sessionRepo := repository.NewSessionRepository(db)
		adminRepo := repository.NewAdminRepository(db)

		listingTTL := time.Duration(cfg.Cache.ListingTTLMin) * time.Minute
		urlSvc := services.NewURLService(urlRepo, store, listingTTL, log)
		userSvc := services.NewUserService(userRepo, tagRepo, sessionRepo, urlSvc, log)
		otpSvc := services.NewOTPService(userRepo, tagRepo, sessionRepo, urlSvc, store, mailer, services.OTPConfig{
			TTL:           time.Duration(cfg.OTP.TTLMinutes) * time.Minute,
			MaxAttempts:   cfg.OTP.MaxAttempts,
			ResetGrantTTL: time.Duration(cfg.OTP.ResetTTLMinutes) * time.Minute,
		}, log)

		inSvc := indexnow.NewService(
			cfg.IndexNow.Endpoint, cfg.IndexNow.Key, cfg.IndexNow.Host,
			cfg.Server.BaseURL,
			time.Duration(cfg.IndexNow.TimeoutSeconds)*time.Second, log)
		submissions := make(chan []string, cfg.IndexNow.BufferSize)
		workers.StartSubmitWorkers(cfg.IndexNow.WorkerCount, submissions, inSvc, log)

		monitorCtx, stopMonitor := context.WithCancel(context.Background())
		defer stopMonitor()
		urlMonitor := monitor.NewURLMonitor(urlRepo, time.Duration(cfg.Monitor.IntervalMinutes)*time.Minute, log)
		go urlMonitor.Start(monitorCtx)

		router := gin.Default()
		srv := api.NewServer(urlSvc, userSvc, otpSvc, adminRepo, store, inSvc, submissions,
			cfg.Session.CookieName, time.Duration(cfg.Session.TTLHours)*time.Hour, log)
		srv.Routes(router)

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: router,
		}
		go func() {
			log.Info("starting server", logger.String("addr", httpSrv.Addr))
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("server failed", logger.Error(err))
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received")

		stopMonitor()

		// Stop accepting requests before closing the submissions channel:
		// in-flight handlers may still enqueue.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("forced shutdown", logger.Error(err))
		}
		close(submissions)
		log.Info("server stopped")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

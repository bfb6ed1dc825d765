package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"zynexhub/internal/config"
	"zynexhub/internal/db"
	"zynexhub/internal/logging"
	"zynexhub/internal/metrics"
	"zynexhub/internal/middleware"
	"zynexhub/internal/router"
	"zynexhub/internal/services"
	"zynexhub/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := logging.New(cfg.Env)
	log.WithField("env", cfg.Env).Info("starting zynexhub")

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Initialize Database
	conn, err := db.Open(cfg.DB.URL, log)
	if err != nil {
		log.WithError(err).Fatal("database connect failed")
	}
	if err := db.Migrate(conn); err != nil {
		log.WithError(err).Fatal("database migrate failed")
	}
	log.Info("database ready")

	m := metrics.New(prometheus.DefaultRegisterer)

	cache, err := utils.NewCache[services.CommentPage](cfg.Cache.Size, cfg.Cache.TTL)
	if err != nil {
		log.WithError(err).Fatal("cache init failed")
	}
	hub := services.NewHub(32)
	inbox := services.NewInbox(32)

	// 异步通知队列
	notifier := services.NewNotifier(conn, cfg.Notifier.QueueSize, logrus.NewEntry(log), m)
	notifierCtx, stopNotifier := context.WithCancel(context.Background())
	notifierDone := make(chan struct{})
	go func() {
		notifier.Run(notifierCtx)
		close(notifierDone)
	}()

	svc := services.New(services.Deps{
		DB:       conn,
		Cache:    cache,
		Hub:      hub,
		Inbox:    inbox,
		Notifier: notifier,
		Metrics:  m,
		Limits:   cfg.Limits,
		Log:      log,
	})

	// 定时清除过期 story
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	cleanupDone := make(chan struct{})
	go func() {
		svc.Stories.RunCleanup(cleanupCtx, cfg.Limits.StoryCleanup, logrus.NewEntry(log))
		close(cleanupDone)
	}()

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), m.Middleware())

	var ready atomic.Bool
	router.RegisterRoutes(r, router.Deps{
		DB:       conn,
		Services: svc,
		Hub:      hub,
		Inbox:    inbox,
		Auth:     middleware.NewAuth(cfg.Auth.JWTSecret, svc.Profiles),
		Limiter:  middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		Limits:   cfg.Limits,
		Ready:    &ready,
		Metrics:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http listen start")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	ready.Store(true)

	exitCode := 0
	select {
	case <-rootCtx.Done():
		log.Info("shutdown requested")
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("http serve failed")
			exitCode = 1
		}
	}
	ready.Store(false)
	hub.Close()
	inbox.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}

	// 通知队列落库后再关闭数据库
	stopCleanup()
	<-cleanupDone
	stopNotifier()
	<-notifierDone
	closeDB(log, conn)

	log.Info("stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func closeDB(log *logrus.Logger, conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.WithError(err).Warn("database close")
	}
}

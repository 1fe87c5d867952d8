package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"imobiliaria/web/config"
	"imobiliaria/web/internal/client"
	"imobiliaria/web/internal/database"
	"imobiliaria/web/internal/media"
	"imobiliaria/web/internal/scheduler"
	"imobiliaria/web/internal/session"
	"imobiliaria/web/internal/web"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
	}

	logger.Infof("Using session database at: %s", cfg.Session.DBPath)
	db, err := database.NewDatabase(cfg.Session.DBPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	// Expired sessions are swept at startup and then periodically
	sweeper := scheduler.NewScheduler(db, cfg.Session.SweepInterval, logger)
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.Session.CookieSecret == "change-me-in-production" {
		logger.Warn("SESSION_COOKIE_SECRET is not set, using the default signing key")
	}
	cookies := sessions.NewCookieStore([]byte(cfg.Session.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.Session.MaxAgeDays * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}

	api := client.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout}, logger)

	uploader := media.NewUploader(cfg.Cloudinary.CloudName, cfg.Cloudinary.UploadPreset, logger)
	if !uploader.Configured() {
		logger.Warn("Cloudinary is not configured, listings can only be created without images")
	}

	handler := web.NewHandler(api, session.NewManager(db, logger), cookies, uploader, web.Options{
		CookieName: "auth-storage",
		PageSize:   cfg.Listing.PageSize,
		Sort:       cfg.Listing.Sort,
	}, logger)

	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), web.RequestLogger(logger))
	web.SetupRoutes(router, handler, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting server on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
}

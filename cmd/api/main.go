package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/emilythestrangee/grievance-portal/backend/internal/assignments"
	"github.com/emilythestrangee/grievance-portal/backend/internal/auth"
	"github.com/emilythestrangee/grievance-portal/backend/internal/cache"
	"github.com/emilythestrangee/grievance-portal/backend/internal/config"
	"github.com/emilythestrangee/grievance-portal/backend/internal/database"
	"github.com/emilythestrangee/grievance-portal/backend/internal/grievances"
	"github.com/emilythestrangee/grievance-portal/backend/internal/handlers"
	"github.com/emilythestrangee/grievance-portal/backend/internal/logger"
	"github.com/emilythestrangee/grievance-portal/backend/internal/notify"
	"github.com/emilythestrangee/grievance-portal/backend/internal/server"
	"github.com/emilythestrangee/grievance-portal/backend/internal/votes"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("api exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logg := logger.New(cfg.LogLevel, os.Stdout)
	if logg.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.New(cfg, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	var (
		statsCache grievances.StatsCache
		cachePing  server.Pinger
	)
	if cfg.RedisURL != "" {
		c, err := cache.Connect(ctx, cfg.RedisURL, cfg.StatsCacheTTL)
		if err != nil {
			// stats fall back to direct queries
			logger.LogError(logg, "main", "run", nil, err)
		} else {
			defer c.Close()
			statsCache, cachePing = c, c
			logg.Info("connected to redis")
		}
	}

	var notifier grievances.Notifier = notify.Noop{}
	if cfg.Twilio.Enabled() {
		notifier = notify.NewSMS(cfg.Twilio, logg)
		logg.Info("sms notifications enabled")
	}

	gormDB := db.GetDB()
	voteStore := votes.NewStore()
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	grievanceSvc := grievances.NewService(gormDB, voteStore, statsCache, notifier, logg)

	handler := handlers.NewHandler(handlers.Deps{
		Auth:        auth.NewService(gormDB, tokens, cfg.AdminEmails, logg),
		Grievances:  grievanceSvc,
		Votes:       votes.NewService(gormDB, voteStore, logg),
		Assignments: assignments.NewService(gormDB, logg),
		Logger:      logg,
	})

	srv := server.New(cfg, handler, tokens, db, cachePing, logg).HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logg.WithField("addr", srv.Addr).Info("server starting")
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logg.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// notifications are bounded by grievances.NotifyTimeout
	grievanceSvc.Wait()
	return err
}

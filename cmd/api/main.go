package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/insighthub/internal/auth"
	"github.com/geocoder89/insighthub/internal/config"
	"github.com/geocoder89/insighthub/internal/db"
	httpx "github.com/geocoder89/insighthub/internal/http"
	"github.com/geocoder89/insighthub/internal/http/handlers"
	"github.com/geocoder89/insighthub/internal/http/middlewares"
	"github.com/geocoder89/insighthub/internal/mailer"
	"github.com/geocoder89/insighthub/internal/notifications"
	"github.com/geocoder89/insighthub/internal/observability"
	"github.com/geocoder89/insighthub/internal/realtime"
	"github.com/geocoder89/insighthub/internal/redisclient"
	"github.com/geocoder89/insighthub/internal/repo/postgres"
	"github.com/geocoder89/insighthub/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "insighthub-api", cfg.OTelEndpoint)
	if err != nil {
		// tracing is optional, the API runs without a collector
		log.Warn("tracer disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	} else if cfg.OTelEndpoint == "" {
		log.Info("tracing export off, OTEL_EXPORTER_OTLP_ENDPOINT not set")
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, cfg.DBMaxConns)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = db.Migrate(migrateCtx, pool)
	cancel()
	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	seedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	created, err := db.EnsureAdminUser(seedCtx, pool, cfg)
	cancel()
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	if created {
		log.Info("admin user created", "email", cfg.AdminEmail)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	jwtManager := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)

	hub := realtime.NewHub(jwtManager.UserIDFromAccessToken, cfg.CORSOrigins, log)

	// with redis every API process sees every notification; without it only local sockets do
	var (
		bus         realtime.Bus
		redisPinger handlers.Pinger
	)
	rdb, err := redisclient.Connect(ctx, redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, 2*time.Second)
	if err != nil {
		log.Warn("redis unavailable, using in-process bus", "addr", cfg.RedisAddr, "err", err)
		bus = realtime.NewLocalBus(hub)
	} else {
		defer rdb.Close()
		redisBus := realtime.NewRedisBus(rdb.Raw(), log)
		bus = redisBus
		redisPinger = rdb

		go redisBus.Serve(ctx, hub)
	}

	mail := mailer.New(cfg.Mail, log)

	files, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Error("upload storage failed", "dir", cfg.UploadDir, "err", err)
		os.Exit(1)
	}

	dispatcher := notifications.NewDispatcher(bus, mail, notifications.Config{
		From:        cfg.Mail.From,
		AdminEmails: cfg.AdminAlertEmails,
	}, log, prom)

	authLimiter := middlewares.NewRateLimiter(20, time.Minute)
	apiLimiter := middlewares.NewRateLimiter(600, time.Minute)

	go func() {
		t := time.NewTicker(time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				authLimiter.Sweep(now)
				apiLimiter.Sweep(now)
			}
		}
	}()

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Prom:     prom,
		Gatherer: reg,

		DB:    pool,
		Redis: redisPinger,

		JWT:   jwtManager,
		Mail:  mail,
		Files: files,
		Hub:   hub,

		Users:     postgres.NewUsersRepo(pool, prom, dispatcher),
		Projects:  postgres.NewProjectsRepo(pool, prom, dispatcher),
		Tasks:     postgres.NewTasksRepo(pool, prom, dispatcher),
		Posts:     postgres.NewPostsRepo(pool, prom, dispatcher),
		Dashboard: postgres.NewDashboardRepo(pool, prom),
		Refresh:   postgres.NewRefreshTokensRepo(pool, prom),
		Resets:    postgres.NewPasswordResetsRepo(pool, prom),

		AuthLimiter: authLimiter,
		APILimiter:  apiLimiter,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

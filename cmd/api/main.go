package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"agent-console/internal/audit"
	"agent-console/internal/auth"
	"agent-console/internal/broadcast"
	"agent-console/internal/config"
	"agent-console/internal/coordinator"
	"agent-console/internal/gateway"
	"agent-console/internal/identity"
	"agent-console/internal/snapshot"
	"agent-console/internal/submission"
	"agent-console/internal/telephony"
	"agent-console/pkg/logger"
	"agent-console/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, "api")
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var (
		auditRepo audit.Repository = audit.NewMemoryRepo()
		db        *sql.DB
	)
	if cfg.DB.Enabled {
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := audit.NewPostgresRepo(db)
		if err := pg.Migrate(rootCtx); err != nil {
			log.Error("audit migrate failed", "err", err)
			os.Exit(1)
		}
		auditRepo = pg
	} else {
		log.Warn("audit database disabled; audit events are kept in memory")
	}

	gw, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Token:   cfg.Gateway.Token,
		Timeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		log.Error("gateway init failed", "err", err)
		os.Exit(1)
	}

	bus := telephony.NewBus()
	deps := coordinator.Deps{
		Bus:         bus,
		Snapshots:   snapshot.NewRedisStore(rdb, cfg.Console.SnapshotTTL),
		Contacts:    gw,
		Submitter:   submission.NewPipeline(gw),
		Broadcaster: broadcast.NewRedis(rdb),
		Audit:       audit.NewService(auditRepo),
		Logger:      log,
	}
	opts := coordinator.Options{
		ExemptProblemID: cfg.Console.ExemptProblemID,
		Location:        cfg.Location(),
		SnapshotTTL:     cfg.Console.SnapshotTTL,
		AutoCloseDelay:  cfg.Console.AutoCloseDelay,
	}
	consoles := coordinator.NewRegistry(func(id identity.AgentIdentity) *coordinator.Coordinator {
		return coordinator.New(id, deps, opts)
	})
	defer consoles.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	r.Use(corsMiddleware(cfg.HTTP))

	registerRoutes(r, routeDeps{
		Auth:        authManager,
		Consoles:    consoles,
		Bus:         bus,
		EventSecret: cfg.Console.EventSecret,
		Ready:       readiness(rdb, db),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

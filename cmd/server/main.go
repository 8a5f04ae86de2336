package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connect-gateway/internal/api"
	"connect-gateway/internal/automation"
	"connect-gateway/internal/campaign"
	"connect-gateway/internal/catalog"
	"connect-gateway/internal/config"
	"connect-gateway/internal/database"
	"connect-gateway/internal/logger"
	"connect-gateway/internal/policy"
	"connect-gateway/internal/throttle"
	"connect-gateway/internal/webhook"
	"connect-gateway/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
	zl.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	if err := database.InitGorm(cfg); err != nil {
		return err
	}
	db := database.GormDB
	zl.Info("database ready", zap.String("driver", cfg.DBDriver))

	presets, err := catalog.Load()
	if err != nil {
		return err
	}
	loc, err := policy.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return err
	}
	quiet, err := policy.NewQuietHours(cfg.QuietStart, cfg.QuietEnd, loc)
	if err != nil {
		return err
	}
	if n, err := database.SeedBusinesses(db, presets, quiet); err != nil {
		return err
	} else if n > 0 {
		zl.Info("seeded sample businesses", zap.Int("count", n))
	}

	checks := map[string]api.HealthCheck{"database": api.DatabaseCheck(db)}
	var store throttle.Store = throttle.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rs, err := throttle.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
		checks["throttle"] = rs.HealthCheck
		zl.Info("throttle store: redis", zap.String("addr", cfg.RedisAddr))
	}

	hub := ws.NewHub(zl)
	engine := automation.NewEngine(db, store, hub, zl)
	planner := campaign.NewPlanner(db, hub, zl)
	webhookHandler := webhook.NewHandler(cfg, db, engine, hub, zl)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(zl), api.CORS())

	r.GET("/health", api.Health(checks))

	// Webhook Routes
	r.GET("/webhook", webhookHandler.VerifyWebhook)
	r.POST("/webhook", webhookHandler.HandleMessage)

	// Realtime events
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	api.Handlers{
		Contacts:   api.NewContactHandler(db),
		Businesses: api.NewBusinessHandler(db, presets),
		Automation: api.NewAutomationHandler(db),
		Campaigns:  api.NewCampaignHandler(planner),
		Policy:     api.NewPolicyHandler(),
	}.Register(r.Group("/api"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		zl.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(zl *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zl.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

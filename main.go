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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/appdedupe/appdedupe/handlers"
	"github.com/appdedupe/appdedupe/internal/authz"
	"github.com/appdedupe/appdedupe/internal/bootstrap"
	cataloghandler "github.com/appdedupe/appdedupe/internal/catalog/handler"
	catalog "github.com/appdedupe/appdedupe/internal/catalog/service"
	"github.com/appdedupe/appdedupe/internal/config"
	"github.com/appdedupe/appdedupe/internal/ingest"
	"github.com/appdedupe/appdedupe/internal/oidc"
	"github.com/appdedupe/appdedupe/internal/scoring"
	"github.com/appdedupe/appdedupe/internal/sessions"
	"github.com/appdedupe/appdedupe/internal/stats"
	"github.com/appdedupe/appdedupe/internal/storage"
	"github.com/appdedupe/appdedupe/internal/tokens"
	"github.com/appdedupe/appdedupe/internal/users"
	"github.com/appdedupe/appdedupe/pkg/logger"
	"github.com/appdedupe/appdedupe/pkg/metrics"
	"github.com/appdedupe/appdedupe/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: keycloak=%v mongo=%v redis=%v minio=%v", cfg.Keycloak.URL != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.MinIO.Endpoint != "")
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := bootstrap.ConnectRedis(ctx, cfg.Redis)
	if rdb != nil {
		sessions.SetBlacklistClient(rdb)
		defer rdb.Close()
	}

	st, err := bootstrap.OpenStores(ctx, cfg, rdb)
	if err != nil {
		logger.Fatalf("failed to open stores: %v", err)
	}
	defer st.Close(context.Background())

	policy := authz.NewAllowList(cfg.Admin.Emails)
	issuer := tokens.NewIssuer(cfg.JWT)
	sessionsSvc := sessions.NewService(st.Sessions)
	userSvc := users.NewService(st.Users, policy, sessionsSvc, issuer.Name())
	catalogSvc := catalog.New(st.Catalog, st.Users, st.Tx, scoring.NewDayGatedStreak(cfg.Scoring.Location), cfg.Scoring.Location)
	statsSvc := stats.New(st.Catalog, st.Users, cfg.Scoring.Location)

	var archive ingest.Archiver
	var files handlers.Presigner
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("MinIO unavailable, uploads will not be archived: %v", err)
		} else {
			archive, files = ms, ms
		}
	}
	ingestSvc := ingest.NewService(st.Catalog, st.Tx, policy, st.Runs, archive)

	// Local tokens first; SSO ID tokens are accepted when a realm is configured.
	verifier := middleware.Verifier(issuer)
	var sso *oidc.Verifier
	if issuerURL := oidc.IssuerURL(cfg.Keycloak); issuerURL != "" {
		sso, err = oidc.NewVerifier(ctx, issuerURL, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			verifier = middleware.Chain(issuer, sso)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(), cors())
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", readiness(st, rdb, cfg))
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	api := r.Group("/api")
	api.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API is working"})
	})
	authed := []gin.HandlerFunc{middleware.AuthMiddleware(verifier), middleware.CurrentUser(userSvc)}

	authHandler := handlers.NewAuthHandler(userSvc, sessionsSvc, issuer)
	if sso != nil {
		authHandler.EnableSSO(cfg.Keycloak, sso)
	}
	authHandler.Register(api, authed...)

	protected := api.Group("", authed...)
	cataloghandler.New(catalogSvc).Register(protected)
	handlers.NewStatsHandler(statsSvc).Register(protected)
	admin := protected.Group("", middleware.RequireAdmin(policy))
	handlers.NewAdminHandler(ingestSvc, catalogSvc, statsSvc, files, cfg.Upload.MaxBytes).Register(admin)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// cors sets permissive headers for the browser client and answers preflights.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-Id")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-Id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// readiness returns 200 only when the configured backends answer.
func readiness(st *bootstrap.Stores, rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}

		if st.Mongo != nil {
			deps["mongo"] = st.Mongo.Ping(ctx, nil) == nil
			ready = ready && deps["mongo"]
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = rdb != nil && rdb.Ping(ctx).Err() == nil
			ready = ready && deps["redis"]
		}

		status, code := "ready", http.StatusOK
		if !ready {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	}
}

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
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fansite/contentflow/handlers"
	"github.com/fansite/contentflow/internal/audit"
	"github.com/fansite/contentflow/internal/config"
	"github.com/fansite/contentflow/internal/content"
	contenthandler "github.com/fansite/contentflow/internal/content/handler"
	"github.com/fansite/contentflow/internal/database"
	"github.com/fansite/contentflow/internal/oidc"
	"github.com/fansite/contentflow/internal/retry"
	"github.com/fansite/contentflow/internal/sessions"
	"github.com/fansite/contentflow/internal/storage"
	"github.com/fansite/contentflow/internal/tags"
	"github.com/fansite/contentflow/internal/tokens"
	"github.com/fansite/contentflow/internal/users"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/metrics"
	"github.com/fansite/contentflow/pkg/middleware"
)

var startTime = time.Now()

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: %s", cfg.Summary())
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	ctx := context.Background()

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db = client.Database(cfg.MongoDB.Database)
		logger.Infof("connected to MongoDB database %s", cfg.MongoDB.Database)
	}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the client reconnects on its own; readiness reports it meanwhile
			logger.Warnf("redis ping failed (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis at %s", addr)
		}
		defer rdb.Close()
	}

	// content workflow
	ccfg, err := content.OpenStores(ctx, content.Backend{
		Driver:        cfg.Content.Store,
		Mongo:         db,
		Redis:         rdb,
		RetryAttempts: cfg.Content.RetryAttempts,
		Backoff:       retry.NewJitter(cfg.Content.RetryInitial, cfg.Content.RetryMax),
	})
	if err != nil {
		logger.Fatalf("failed to open content stores: %v", err)
	}

	var auditRepo audit.Repository = audit.NewMemoryRepository()
	if db != nil {
		ar, err := audit.NewMongoRepository(ctx, db.Collection("audit_logs"))
		if err != nil {
			logger.Fatalf("failed to open audit log: %v", err)
		}
		auditRepo = ar
	}
	recorder := audit.NewRecorder(auditRepo)
	ccfg.Hooks = []workflow.Hook{workflow.LogHook, recorder}
	dispatcher := content.NewDispatcher(ccfg)

	// users and sessions
	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	if db != nil {
		userRepo = users.NewMongoUserRepository(db.Collection("users"))
	}
	userSvc := users.NewService(userRepo)

	var sessionRepo sessions.Repository
	switch {
	case rdb != nil:
		sessionRepo = sessions.NewRedisRepository(rdb, "session:")
		logger.Infof("using Redis for session storage")
	case db != nil:
		mr := sessions.NewMongoRepository(db.Collection("sessions"))
		if err := mr.EnsureIndexes(ctx); err != nil {
			logger.Warnf("sessions: ensure indexes: %v", err)
		}
		sessionRepo = mr
	default:
		logger.Warnf("no Redis or MongoDB configured: sessions are kept in memory")
		sessionRepo = sessions.NewMemoryRepository()
	}
	sessionsSvc := sessions.NewService(sessionRepo)
	var blacklist *sessions.Blacklist
	if rdb != nil {
		blacklist = sessions.NewBlacklist(rdb)
	}

	var tagRepo tags.Repository = tags.NewMemoryRepository()
	if db != nil {
		tr, err := tags.NewMongoRepository(ctx, db.Collection("tags"))
		if err != nil {
			logger.Fatalf("failed to open tags: %v", err)
		}
		tagRepo = tr
	}
	tagSvc := tags.NewService(tagRepo)

	var files storage.Store = storage.NewMemoryStorage()
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
		files = ms
	}

	// token verification: service tokens first, then OIDC ID tokens
	var idTokens middleware.ChainVerifier
	var oidcReady bool
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := cfg.Keycloak.URL
		if cfg.Keycloak.Realm != "" {
			issuer = oidc.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		}
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
		} else {
			idTokens = append(idTokens, ver)
			oidcReady = true
		}
	}
	if cfg.AllowInsecureToken {
		logger.Warnf("enabling insecure token verifier (integration mode)")
		idTokens = append(idTokens, oidc.NewInsecureVerifier())
	}
	secret := cfg.JWT.Secret
	if secret == "" {
		logger.Warnf("JWT_SECRET not set: using an ephemeral development secret")
		secret = fmt.Sprintf("dev-%d", time.Now().UnixNano())
	}
	issuer := tokens.NewIssuer(secret, cfg.JWT.AccessTokenTTL)
	bearer := append(middleware.ChainVerifier{tokens.NewVerifier(secret)}, idTokens...)

	gin.SetMode(ginMode(cfg.Server.Environment))
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logger.Writer(logger.LevelInfo), "/health"), gin.Recovery(), cors())
	r.Use(middleware.OptionalAuthMiddleware(bearer, blacklist), middleware.ActorMiddleware(userSvc))
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			r.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps := map[string]bool{"mongo": true, "redis": true, "oidc": cfg.Keycloak.URL == "" || oidcReady}
		if db != nil {
			deps["mongo"] = db.Client().Ping(pctx, nil) == nil
		}
		if rdb != nil {
			deps["redis"] = rdb.Ping(pctx).Err() == nil
		}
		status, code := "ready", http.StatusOK
		for _, ok := range deps {
			if !ok {
				status, code = "not_ready", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterSwagger(r)
	handlers.NewAuthHandler(cfg, idTokens, userSvc, sessionsSvc, issuer, blacklist).Register(r)
	contenthandler.RegisterContentRoutes(r, dispatcher)
	handlers.RegisterUserRoutes(r, userSvc, recorder)
	handlers.RegisterTagRoutes(r, tagSvc)
	handlers.RegisterAuditRoutes(r, recorder)
	handlers.NewUploadHandler(files, cfg.Content.MaxUploadBytes).Register(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting contentflow on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Infof("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}

// cors allows any origin. Production runs behind a stricter proxy.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, If-Match, If-None-Match")
		h.Set("Access-Control-Expose-Headers", "Content-Length, ETag")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func ginMode(env string) string {
	if env == "production" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}

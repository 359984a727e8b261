// Command content runs the content workflow API on its own, without the auth
// endpoints. Callers present service access tokens issued by the main service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fansite/contentflow/internal/config"
	"github.com/fansite/contentflow/internal/content"
	"github.com/fansite/contentflow/internal/content/handler"
	"github.com/fansite/contentflow/internal/database"
	"github.com/fansite/contentflow/internal/retry"
	"github.com/fansite/contentflow/internal/sessions"
	"github.com/fansite/contentflow/internal/tokens"
	"github.com/fansite/contentflow/internal/users"
	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	if port := os.Getenv("CONTENT_SERVICE_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if cfg.JWT.Secret == "" {
		logger.Fatalf("JWT_SECRET is required to verify access tokens")
	}
	ctx := context.Background()

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		db = client.Database(cfg.MongoDB.Database)
	}
	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

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
	ccfg.Hooks = []workflow.Hook{workflow.LogHook}

	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	if db != nil {
		userRepo = users.NewMongoUserRepository(db.Collection("users"))
	}
	var blacklist *sessions.Blacklist
	if rdb != nil {
		blacklist = sessions.NewBlacklist(rdb)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.OptionalAuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret), blacklist))
	r.Use(middleware.ActorMiddleware(users.NewService(userRepo)))
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "healthy") })
	handler.RegisterContentRoutes(r, content.NewDispatcher(ccfg))

	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: r, ReadTimeout: cfg.Server.ReadTimeout, WriteTimeout: cfg.Server.WriteTimeout}
	go func() {
		logger.Infof("content service listening on %s (store=%s)", srv.Addr, cfg.Content.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(sctx)
}

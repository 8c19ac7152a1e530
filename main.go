package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"relationship-service/internal/config"
	"relationship-service/internal/db"
	"relationship-service/internal/events"
	grpcsvc "relationship-service/internal/grpc"
	"relationship-service/internal/handlers"
	"relationship-service/internal/logging"
	"relationship-service/internal/metrics"
	"relationship-service/internal/middleware"
	"relationship-service/internal/notifications"
	"relationship-service/internal/observability"
	"relationship-service/internal/rabbitmq"
	"relationship-service/internal/redispub"
	"relationship-service/internal/repositories"
	"relationship-service/internal/services"
	"relationship-service/internal/telemetry"
)

// store bundles the relationship and profile sides of one backend.
type store struct {
	relationships repositories.RelationshipRepository
	users         repositories.UserRepository
	ping          grpcsvc.Checker
	close         func()
}

func main() {
	cfg, err := config.Load(os.Getenv("RELATIONS_CONFIG"))
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.Server.Mode)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer st.close()

	publisher := newPublisher(ctx, cfg, cfg.Events.Exchange, cfg.Events.RedisChannel, logger)
	defer publisher.Close()

	auditPublisher := newPublisher(ctx, cfg, cfg.Events.LogsExchange, cfg.Events.LogsExchange, logger)
	defer auditPublisher.Close()

	observability.InitMetrics(prometheus.DefaultRegisterer)
	metrics.RegisterRelationshipMetrics()

	notifier := notifications.NewEventNotifier(publisher, cfg.Service.Name)
	relationshipService := services.NewRelationshipService(st.relationships, st.users, notifier, logger, services.SearchOptions{
		MinLength: cfg.Search.MinLength,
		MaxLength: cfg.Search.MaxLength,
		Limit:     cfg.Search.Limit,
	})

	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, logger, cfg.Service.Name, cfg.Service.Environment)
	relationshipHandler := handlers.NewRelationshipHandler(relationshipService, auditEmitter)
	userHandler := handlers.NewUserHandler(st.users, auditEmitter)

	if _, err := grpcsvc.StartGRPCServer(ctx, cfg.Server.GRPCAddr, logger, grpcsvc.Options{Checker: st.ping}); err != nil {
		logger.Fatal("failed to start gRPC server", zap.Error(err))
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	limiter := middleware.NewKeyedRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, 10*time.Minute)
	limited := middleware.RateLimit(limiter)

	auth := r.Group("", middleware.JWTAuth(cfg.Auth.JWTSecret))

	auth.GET("/users/me/settings", userHandler.GetSettings)
	auth.PATCH("/users/me/settings", limited, userHandler.UpdateSettings)
	auth.PUT("/users/me/profile", limited, userHandler.SyncProfile)

	rel := auth.Group("/relationships")
	rel.POST("", limited, relationshipHandler.SendRequest)
	rel.PATCH("/:id", limited, relationshipHandler.Manage)
	rel.POST("/block/:user_id", limited, relationshipHandler.BlockUser)
	rel.GET("", relationshipHandler.ListFriends)
	rel.GET("/requests/sent", relationshipHandler.ListSent)
	rel.GET("/requests/received", relationshipHandler.ListReceived)
	rel.GET("/blocked", relationshipHandler.ListBlocked)
	rel.GET("/search/all", limited, relationshipHandler.SearchCandidates)
	rel.GET("/search/friends", relationshipHandler.SearchFriends)
	rel.GET("/with/:user_id", relationshipHandler.GetRelationshipInfo)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr), zap.String("store", cfg.Store.Driver), zap.String("events", cfg.Events.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	if cfg.Store.Driver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		mem := repositories.NewMemoryStore()
		return &store{relationships: mem, users: mem, close: func() {}}, nil
	}

	database, err := db.Connect(ctx, db.Options{
		DSN:         cfg.Database.DSN,
		MaxOpen:     cfg.Database.MaxOpen,
		MaxIdle:     cfg.Database.MaxIdle,
		MaxLifetime: cfg.Database.MaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	return &store{
		relationships: repositories.NewRelationshipRepository(database),
		users:         repositories.NewUserRepository(database),
		ping:          database.PingContext,
		close:         func() { database.Close() },
	}, nil
}

// newPublisher falls back to a no-op publisher when the broker is unreachable,
// so notifications and audit stay best-effort.
func newPublisher(ctx context.Context, cfg *config.Config, exchange, channel string, logger *zap.Logger) events.Publisher {
	var (
		pub events.Publisher
		err error
	)
	switch cfg.Events.Driver {
	case "rabbitmq":
		pub, err = rabbitmq.NewPublisher(cfg.Events.AMQPURL, exchange, cfg.Service.Name)
	case "redis":
		pub, err = redispub.NewPublisher(ctx, cfg.Events.RedisAddr, channel)
	default:
		return events.NewNoopPublisher(logger)
	}
	if err != nil {
		logger.Warn("failed to initialize event publisher; publishing disabled",
			zap.String("driver", cfg.Events.Driver), zap.String("target", exchange), zap.Error(err))
		return events.NewNoopPublisher(logger)
	}
	return pub
}

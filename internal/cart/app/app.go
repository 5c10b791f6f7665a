package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	httpapi "github.com/shestoi/GoFoodSaga/internal/cart/api/http"
	"github.com/shestoi/GoFoodSaga/internal/cart/client"
	"github.com/shestoi/GoFoodSaga/internal/cart/config"
	cartredis "github.com/shestoi/GoFoodSaga/internal/cart/repository/redis"
	"github.com/shestoi/GoFoodSaga/internal/cart/service"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/grpc"
	platformlogging "github.com/shestoi/GoFoodSaga/platform/logging"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
	platformshutdown "github.com/shestoi/GoFoodSaga/platform/shutdown"
)

// App содержит все зависимости для запуска и корректного shutdown Cart Service
type App struct {
	logger       *zap.Logger
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *platformhealth.Health
	shutdownMgr  *platformshutdown.Manager
	wg           sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Cart Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "cart",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Cart service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("redis_addr", cfg.RedisAddr))

	// Observability (noop если OTEL_ENABLED не выставлен)
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRatio:         1.0,
		ServiceName:           "cart",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}

	// Подключаемся к Redis
	logger.Info("Connecting to Redis")
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	logger.Info("Redis connection established")

	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return redisClient.Ping(ctx).Err() == nil
	}

	cartRepo := cartredis.NewCartRepository(redisClient, logger)

	profileClient := client.NewProfileClient(logger, cfg.ProfileBaseURL, cfg.InternalToken, cfg.ClientTimeout)
	restaurantClient := client.NewRestaurantClient(logger, cfg.RestaurantBaseURL, cfg.InternalToken, cfg.ClientTimeout)
	orderClient := client.NewOrderClient(logger, cfg.OrderBaseURL, cfg.InternalToken, cfg.ClientTimeout)

	cartService := service.NewCartService(cartRepo, profileClient, restaurantClient, orderClient, cfg.CartTTL, logger)

	// HTTP сервер
	handler := httpapi.NewHandler(cartService, logger)
	router := httpapi.NewRouter(handler, cfg.JWTSecret, readiness, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// gRPC health сервер для проб оркестратора
	grpcListener, err := net.Listen("tcp", cfg.GRPCHealthAddr)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	grpcServer := grpc.NewServer()
	health := platformhealth.New(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	health.Register(grpcServer)

	// Shutdown в обратном порядке: сначала входящий трафик, потом хранилище
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))
	shutdownMgr.Add("grpc_server", platformshutdown.ShutdownGRPCServer(grpcServer))
	shutdownMgr.Add("otel", otelShutdown)
	shutdownMgr.Add("redis_client", platformshutdown.CloseRedis(redisClient))

	return &App{
		logger:       logger,
		httpServer:   httpServer,
		grpcServer:   grpcServer,
		grpcListener: grpcListener,
		health:       health,
		shutdownMgr:  shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Cart service")

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	a.logger.Info("HTTP server listening", zap.String("addr", a.httpServer.Addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.grpcServer.Serve(a.grpcListener); err != nil {
			a.logger.Error("gRPC health server error", zap.Error(err))
		}
	}()

	a.health.SetServing("cart")
	a.logger.Info("Cart service started")

	a.shutdownMgr.Wait()

	a.wg.Wait()

	a.logger.Info("Cart service stopped")
	return nil
}

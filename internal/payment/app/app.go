package app

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/shestoi/GoFoodSaga/internal/events"
	httpapi "github.com/shestoi/GoFoodSaga/internal/payment/api/http"
	"github.com/shestoi/GoFoodSaga/internal/payment/client"
	"github.com/shestoi/GoFoodSaga/internal/payment/config"
	eventkafka "github.com/shestoi/GoFoodSaga/internal/payment/event/kafka"
	"github.com/shestoi/GoFoodSaga/internal/payment/migrations"
	"github.com/shestoi/GoFoodSaga/internal/payment/repository/postgres"
	"github.com/shestoi/GoFoodSaga/internal/payment/service"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/grpc"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
	platformlogging "github.com/shestoi/GoFoodSaga/platform/logging"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
	platformpostgres "github.com/shestoi/GoFoodSaga/platform/postgres"
	platformshutdown "github.com/shestoi/GoFoodSaga/platform/shutdown"
)

// App содержит все зависимости для запуска и корректного shutdown Payment Service
type App struct {
	logger       *zap.Logger
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *platformhealth.Health
	consumers    []*platformkafka.Consumer
	dispatcher   *platformkafka.OutboxDispatcher
	shutdownMgr  *platformshutdown.Manager
	wg           sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Payment Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "payment",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Payment service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers))

	// Observability (noop если OTEL_ENABLED не выставлен)
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRatio:         1.0,
		ServiceName:           "payment",
		DeploymentEnvironment: string(cfg.AppEnv),
	})
	if err != nil {
		return nil, err
	}

	// Применяем миграции
	logger.Info("Applying database migrations")
	if err := platformpostgres.Migrate(cfg.PostgresDSN, migrations.FS); err != nil {
		return nil, err
	}
	logger.Info("Database migrations applied successfully")

	// Подключаемся к PostgreSQL
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("PostgreSQL connection established")

	readiness := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx) == nil
	}

	paymentRepo := postgres.NewRepository(pool)

	orderClient := client.NewOrderClient(logger, cfg.OrderBaseURL, cfg.InternalToken, cfg.ClientTimeout)

	paymentService := service.NewPaymentService(paymentRepo, orderClient, logger)

	// Outbox dispatcher публикует payment.* события
	dispatcher := platformkafka.NewOutboxDispatcher(
		logger,
		paymentRepo,
		cfg.KafkaBrokers,
		cfg.OutboxBatchSize,
		cfg.OutboxInterval,
		cfg.OutboxMaxRetries,
		cfg.OutboxRetryBackoff,
	)

	// DLQ publisher и consumer компенсации по отменённым заказам
	dlqPublisher := platformkafka.NewDLQPublisher(logger, cfg.KafkaBrokers, cfg.DLQTopic)

	handlers := eventkafka.NewHandlers(paymentService, paymentRepo, logger)

	consumers := []*platformkafka.Consumer{
		platformkafka.NewConsumer(logger, cfg.KafkaBrokers, cfg.OrderGroupID, events.TopicOrderCancelled,
			handlers.HandleOrderCancelled, dlqPublisher, cfg.RetryMaxAttempts, cfg.RetryBackoffBase),
	}

	// HTTP сервер
	handler := httpapi.NewHandler(paymentService, logger)
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
		pool.Close()
		return nil, err
	}
	grpcServer := grpc.NewServer()
	health := platformhealth.New(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	health.Register(grpcServer)

	// Shutdown в обратном порядке: сначала входящий трафик, потом producers, потом пул
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))
	shutdownMgr.Add("grpc_server", platformshutdown.ShutdownGRPCServer(grpcServer))
	for _, consumer := range consumers {
		shutdownMgr.Add("kafka_consumer", platformshutdown.CloseFunc(consumer))
	}
	shutdownMgr.Add("dlq_publisher", platformshutdown.CloseFunc(dlqPublisher))
	shutdownMgr.Add("outbox_dispatcher", platformshutdown.CloseFunc(dispatcher))
	shutdownMgr.Add("otel", otelShutdown)
	shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))

	return &App{
		logger:       logger,
		httpServer:   httpServer,
		grpcServer:   grpcServer,
		grpcListener: grpcListener,
		health:       health,
		consumers:    consumers,
		dispatcher:   dispatcher,
		shutdownMgr:  shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Payment service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.dispatcher.Start(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("outbox dispatcher error", zap.Error(err))
		}
	}()

	for _, consumer := range a.consumers {
		c := consumer
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := c.Start(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("kafka consumer error", zap.Error(err))
			}
		}()
	}

	a.health.SetServing("payment")
	a.logger.Info("Payment service started")

	a.shutdownMgr.Wait()

	cancel()
	a.wg.Wait()

	a.logger.Info("Payment service stopped")
	return nil
}

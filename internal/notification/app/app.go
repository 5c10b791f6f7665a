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
	httpapi "github.com/shestoi/GoFoodSaga/internal/notification/api/http"
	"github.com/shestoi/GoFoodSaga/internal/notification/config"
	eventkafka "github.com/shestoi/GoFoodSaga/internal/notification/event/kafka"
	"github.com/shestoi/GoFoodSaga/internal/notification/migrations"
	"github.com/shestoi/GoFoodSaga/internal/notification/repository/postgres"
	"github.com/shestoi/GoFoodSaga/internal/notification/service"
	platformhealth "github.com/shestoi/GoFoodSaga/platform/health/grpc"
	platformkafka "github.com/shestoi/GoFoodSaga/platform/kafka"
	platformlogging "github.com/shestoi/GoFoodSaga/platform/logging"
	platformobservability "github.com/shestoi/GoFoodSaga/platform/observability"
	platformpostgres "github.com/shestoi/GoFoodSaga/platform/postgres"
	platformshutdown "github.com/shestoi/GoFoodSaga/platform/shutdown"
)

// App содержит все зависимости для запуска и корректного shutdown Notification Service
type App struct {
	logger       *zap.Logger
	httpServer   *http.Server
	grpcServer   *grpc.Server
	grpcListener net.Listener
	health       *platformhealth.Health
	consumers    []*platformkafka.Consumer
	shutdownMgr  *platformshutdown.Manager
	wg           sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Notification Service
func Build(cfg config.Config) (*App, error) {
	const op = "app.Build"

	logger, err := platformlogging.New(platformlogging.Config{
		ServiceName: "notification",
		Env:         string(cfg.AppEnv),
		Level:       os.Getenv("LOG_LEVEL"),
		Format:      os.Getenv("LOG_FORMAT"),
	})
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("op", op))
	logger.Info("Building Notification service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers))

	// Observability (noop если OTEL_ENABLED не выставлен)
	otelShutdown, err := platformobservability.Init(context.Background(), platformobservability.Config{
		Enabled:               os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SamplingRatio:         1.0,
		ServiceName:           "notification",
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

	notificationRepo := postgres.NewRepository(pool)
	notificationService := service.NewNotificationService(notificationRepo, logger)

	// DLQ publisher и consumers на все топики каталога
	dlqPublisher := platformkafka.NewDLQPublisher(logger, cfg.KafkaBrokers, cfg.DLQTopic)

	handlers := eventkafka.NewHandlers(notificationService, logger)

	newConsumer := func(groupID, topic string, handler platformkafka.MessageHandler) *platformkafka.Consumer {
		return platformkafka.NewConsumer(logger, cfg.KafkaBrokers, groupID, topic,
			handler, dlqPublisher, cfg.RetryMaxAttempts, cfg.RetryBackoffBase)
	}

	consumers := []*platformkafka.Consumer{
		newConsumer(cfg.OrderGroupID, events.TopicOrderCreated, handlers.HandleOrderCreated),
		newConsumer(cfg.OrderGroupID, events.TopicOrderConfirmed, handlers.HandleOrderConfirmed),
		newConsumer(cfg.OrderGroupID, events.TopicOrderReady, handlers.HandleOrderReady),
		newConsumer(cfg.OrderGroupID, events.TopicOrderCancelled, handlers.HandleOrderCancelled),
		newConsumer(cfg.PaymentGroupID, events.TopicPaymentConfirmed, handlers.HandlePaymentConfirmed),
		newConsumer(cfg.PaymentGroupID, events.TopicPaymentFailed, handlers.HandlePaymentFailed),
		newConsumer(cfg.PaymentGroupID, events.TopicPaymentRefunded, handlers.HandlePaymentRefunded),
		newConsumer(cfg.DeliveryGroupID, events.TopicDeliveryAssigned, handlers.HandleDeliveryAssigned),
		newConsumer(cfg.DeliveryGroupID, events.TopicDeliveryPickedUp, handlers.HandleDeliveryPickedUp),
		newConsumer(cfg.DeliveryGroupID, events.TopicDeliveryInTransit, handlers.HandleDeliveryInTransit),
		newConsumer(cfg.DeliveryGroupID, events.TopicDeliveryDelivered, handlers.HandleDeliveryDelivered),
	}

	// HTTP сервер
	handler := httpapi.NewHandler(notificationService, logger)
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

	// Shutdown в обратном порядке: сначала входящий трафик, потом consumers, потом пул
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))
	shutdownMgr.Add("grpc_server", platformshutdown.ShutdownGRPCServer(grpcServer))
	for _, consumer := range consumers {
		shutdownMgr.Add("kafka_consumer", platformshutdown.CloseFunc(consumer))
	}
	shutdownMgr.Add("dlq_publisher", platformshutdown.CloseFunc(dlqPublisher))
	shutdownMgr.Add("otel", otelShutdown)
	shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))

	return &App{
		logger:       logger,
		httpServer:   httpServer,
		grpcServer:   grpcServer,
		grpcListener: grpcListener,
		health:       health,
		consumers:    consumers,
		shutdownMgr:  shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown
func (a *App) Run() error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Notification service")

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

	a.health.SetServing("notification")
	a.logger.Info("Notification service started")

	a.shutdownMgr.Wait()

	cancel()
	a.wg.Wait()

	a.logger.Info("Notification service stopped")
	return nil
}

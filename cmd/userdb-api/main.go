package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usernotify/internal/api"
	"usernotify/pkg/config"
	"usernotify/pkg/logger"
	"usernotify/pkg/postgres"
	"usernotify/pkg/rabbitmq"

	_ "usernotify/docs/userdb"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title           User Database API
// @version         1.0
// @description     User CRUD service that publishes USER_CREATED and USER_DELETED lifecycle events.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadForService("userdb")
	if err != nil {
		logger.New(logger.Options{Service: "userdb-api"}).Error("invalid configuration", "error", err)
		return err
	}
	log := logger.New(logger.Options{
		Service:    "userdb-api",
		Level:      cfg.SlogLevel(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	log.Info("starting userdb-api", "topic", cfg.UserTopic, "partitions", cfg.TopicPartitions)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL
	db, err := postgres.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, "userdb", log); err != nil {
		log.Error("failed to run migrations", "error", err)
		return err
	}

	// Connect to RabbitMQ
	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, log)
	if err != nil {
		log.Error("failed to connect to rabbitmq", "error", err)
		return err
	}
	defer rmqConn.Close()

	topology := rabbitmq.Topology{
		Topic:           cfg.UserTopic,
		Partitions:      cfg.TopicPartitions,
		DeadLetterQueue: cfg.DeadLetterQueue,
	}
	ch, err := rmqConn.Channel()
	if err != nil {
		log.Error("failed to open channel", "error", err)
		return err
	}
	defer ch.Close()
	if err := topology.Declare(ch); err != nil {
		log.Error("failed to declare topology", "error", err)
		return err
	}
	confirmCh, err := rabbitmq.NewConfirmChannel(ch)
	if err != nil {
		log.Error("failed to enable publisher confirms", "error", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	producer := rabbitmq.NewProducer(confirmCh, topology,
		rabbitmq.WithPublishTimeout(cfg.PublishTimeout),
		rabbitmq.WithProducerLogger(log),
		rabbitmq.WithProducerMetrics(rabbitmq.NewMetrics(reg)),
	)
	go producer.WatchBlocked(rmqConn.NotifyBlocked())
	connLost := rmqConn.NotifyLost()
	chLost := rabbitmq.NotifyChannelLost(ch)

	// Setup handlers and router
	handler := api.NewUserHandler(db, producer, cfg.EventSource, log)
	router := api.NewRouter(handler, reg)

	// HTTP server with graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error("server error", "error", err)
		return err
	case err := <-connLost:
		log.Error("publishing stopped", "error", err)
		_ = shutdown(srv, log)
		return err
	case err := <-chLost:
		log.Error("publishing stopped", "error", err)
		_ = shutdown(srv, log)
		return err
	}

	if err := shutdown(srv, log); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}

func shutdown(srv *http.Server, log *slog.Logger) error {
	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}
	return nil
}

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

	"usernotify/internal/dedup"
	"usernotify/internal/mailer"
	"usernotify/internal/notification"
	"usernotify/internal/notifyapi"
	"usernotify/pkg/config"
	"usernotify/pkg/logger"
	"usernotify/pkg/postgres"
	"usernotify/pkg/rabbitmq"

	_ "usernotify/docs/notifications"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// @title           Notification Service API
// @version         1.0
// @description     Consumes user lifecycle events and mails account notifications. Exposes a manual trigger.
// @host            localhost:8081
// @BasePath        /
// @schemes         http
func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadForService("notify")
	if err != nil {
		logger.New(logger.Options{Service: "notification-service"}).Error("invalid configuration", "error", err)
		return err
	}
	log := logger.New(logger.Options{
		Service:    "notification-service",
		Level:      cfg.SlogLevel(),
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	log.Info("starting notification-service",
		"topic", cfg.UserTopic, "partitions", cfg.TopicPartitions, "dedup", cfg.DedupEnabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	smtp := mailer.NewSMTPMailer(mailer.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		Encryption: cfg.SMTPEncryption,
	}, cfg.SMTPTimeout, log)

	opts := []notification.DispatcherOption{
		notification.WithLogger(log),
		notification.WithMetrics(notification.NewMetrics(reg)),
	}
	if cfg.DedupEnabled {
		deduper, closeFn, err := openDeduper(ctx, cfg, log)
		if err != nil {
			log.Error("failed to open dedup store", "store", cfg.DedupStore, "error", err)
			return err
		}
		defer closeFn()
		opts = append(opts, notification.WithDeduper(deduper))
	}
	dispatcher := notification.NewDispatcher(smtp, opts...)

	// Connect to RabbitMQ
	rmqConn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, log)
	if err != nil {
		log.Error("failed to connect to rabbitmq", "error", err)
		return err
	}
	defer rmqConn.Close()

	consumer := notification.NewConsumer(dispatcher, log)
	group, err := rabbitmq.StartConsumers(ctx, rmqConn, rabbitmq.ConsumerConfig{
		Topology: rabbitmq.Topology{
			Topic:           cfg.UserTopic,
			Partitions:      cfg.TopicPartitions,
			DeadLetterQueue: cfg.DeadLetterQueue,
		},
		ConsumerName: cfg.ConsumerName,
		RequeueDelay: cfg.RequeueDelay,
	}, consumer.HandleMessage, log, rabbitmq.NewMetrics(reg))
	if err != nil {
		log.Error("failed to start consumers", "error", err)
		return err
	}

	router := notifyapi.NewRouter(notifyapi.NewMailHandler(dispatcher, log), reg)
	srv := &http.Server{
		Addr:              ":" + cfg.NotifyPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "port", cfg.NotifyPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		log.Error("server error", "error", runErr)
	case runErr = <-group.Done():
		log.Error("consumption stopped", "error", runErr)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	stop()
	if err := group.Close(); err != nil {
		log.Error("failed to close consumers", "error", err)
	}
	log.Info("notification-service stopped")
	return runErr
}

// openDeduper connects the configured recently-seen store.
func openDeduper(ctx context.Context, cfg *config.Config, log *slog.Logger) (notification.Deduper, func(), error) {
	switch cfg.DedupStore {
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(ctx, db, "notifications", log); err != nil {
			db.Close()
			return nil, nil, err
		}
		set := dedup.NewPostgresSet(db, cfg.DedupTTL)
		if n, err := set.Purge(ctx); err != nil {
			log.Warn("failed to purge expired idempotency keys", "error", err)
		} else if n > 0 {
			log.Info("purged expired idempotency keys", "count", n)
		}
		return set, func() { db.Close() }, nil
	default:
		client, err := dedup.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return dedup.NewRedisSet(client, cfg.DedupTTL), func() { client.Close() }, nil
	}
}

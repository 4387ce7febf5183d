// Package main запускает HTTP-сервер ассистента поддержки заказов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/order-assistant/internal/classifier"
	"github.com/mmeshcher/order-assistant/internal/config"
	"github.com/mmeshcher/order-assistant/internal/escalation"
	"github.com/mmeshcher/order-assistant/internal/handler"
	"github.com/mmeshcher/order-assistant/internal/history"
	"github.com/mmeshcher/order-assistant/internal/metrics"
	"github.com/mmeshcher/order-assistant/internal/repository"
	"github.com/mmeshcher/order-assistant/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if err := cfg.Validate(); err != nil {
		sugar.Fatalw("invalid configuration", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var historyStore service.HistoryStore = repo
	if cfg.RedisAddr != "" {
		rdb, err := history.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()

		historyStore = history.NewRedisStore(rdb, cfg.HistoryTTL)
		sugar.Infow("conversation history stored in redis", "addr", cfg.RedisAddr)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Без внешней системы эскалации запросы только логируются.
	var target escalation.Escalator = escalation.Noop{Logger: logger}
	if cfg.EscalationURL != "" {
		target = escalation.NewWebhookEscalator(cfg.EscalationURL, cfg.EscalationTimeout)
	}

	var consumer *escalation.Consumer
	escalator := target
	if cfg.RabbitMQURL != "" {
		publisher := escalation.NewPublisher(cfg.RabbitMQURL)
		defer publisher.Close()

		escalator = publisher
		consumer = escalation.NewConsumer(cfg.RabbitMQURL, target, cfg.EscalationTimeout, logger)
	}

	dispatcher := escalation.NewDispatcher(escalator, logger,
		escalation.WithTimeout(cfg.EscalationTimeout),
		escalation.WithMetrics(m),
	)

	classifierClient := classifier.NewClient(cfg.ClassifierBaseURL, cfg.ClassifierAPIKey,
		classifier.WithModel(cfg.ClassifierModel),
	)

	svc := service.NewService(repo, historyStore, classifierClient, dispatcher,
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithClassifierTimeout(cfg.ClassifierTimeout),
	)

	h := handler.NewHandler(svc, logger, promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая отправка запросов на эскалацию
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	// Пересылка эскалаций из очереди во внешнюю систему
	if consumer != nil {
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting assistant server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

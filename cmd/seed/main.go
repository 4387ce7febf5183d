// Package main заполняет базу демонстрационными данными: один пользователь, три заказа и заявка на возврат.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/config"
	"github.com/mmeshcher/order-assistant/internal/model"
	"github.com/mmeshcher/order-assistant/internal/repository"
)

const demoPhone = "9876543210"

func day(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.DatabaseURI == "" {
		sugar.Fatal("database URI is required (DATABASE_URI or -d)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(ctx, cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	if err := seed(ctx, repo); err != nil {
		sugar.Fatalw("seed failed", "error", err.Error())
	}
	sugar.Infow("database seeded", "phone", demoPhone)
}

func seed(ctx context.Context, repo *repository.PostgresRepository) error {
	// Удаление пользователя каскадно очищает заказы, заявки и историю.
	if err := repo.DeleteUser(ctx, demoPhone); err != nil {
		return err
	}

	if err := repo.UpsertUser(ctx, model.User{
		Phone: demoPhone,
		Name:  "Mayank Joshi",
		Email: "mayank@example.com",
	}); err != nil {
		return err
	}

	orders := []model.Order{
		{
			ID:               "1001",
			UserPhone:        demoPhone,
			Product:          "Wireless Mouse",
			Status:           model.OrderStatusShipped,
			PlacedAt:         day("2025-07-05"),
			ShippedAt:        day("2025-07-06"),
			ExpectedDelivery: day("2025-07-12"),
		},
		{
			ID:               "1002",
			UserPhone:        demoPhone,
			Product:          "Gaming Keyboard",
			Status:           model.OrderStatusDelivered,
			PlacedAt:         day("2025-06-30"),
			ShippedAt:        day("2025-07-01"),
			OutForDeliveryAt: day("2025-07-03"),
			DeliveredAt:      day("2025-07-04"),
			ExpectedDelivery: day("2025-07-04"),
		},
		{
			ID:          "1003",
			UserPhone:   demoPhone,
			Product:     "Laptop Stand",
			Status:      model.OrderStatusCancelled,
			PlacedAt:    day("2025-07-01"),
			CancelledAt: day("2025-07-02"),
		},
	}
	for _, o := range orders {
		if err := repo.InsertOrder(ctx, o); err != nil {
			return err
		}
	}

	return repo.CreateRefund(ctx, &model.RefundRequest{
		ID:          uuid.NewString(),
		OrderID:     "1002",
		UserPhone:   demoPhone,
		Reason:      "Received wrong item",
		Status:      model.RefundStatusPending,
		RequestedAt: *day("2025-07-05"),
	})
}

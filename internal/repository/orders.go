package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/order-assistant/internal/model"
)

const orderColumns = `order_id, user_phone, product, status, placed_at, shipped_at, out_for_delivery_at,
	delivered_at, cancelled_at, expected_delivery, version`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserPhone, &o.Product, &status, &o.PlacedAt, &o.ShippedAt,
		&o.OutForDeliveryAt, &o.DeliveredAt, &o.CancelledAt, &o.ExpectedDelivery, &o.Version)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// InsertOrder сохраняет новый заказ пользователя.
func (r *PostgresRepository) InsertOrder(ctx context.Context, o model.Order) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (order_id, user_phone, product, status, placed_at, shipped_at,
			out_for_delivery_at, delivered_at, cancelled_at, expected_delivery)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.UserPhone, o.Product, string(o.Status), o.PlacedAt, o.ShippedAt,
		o.OutForDeliveryAt, o.DeliveredAt, o.CancelledAt, o.ExpectedDelivery,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ListOrders возвращает заказы пользователя, начиная с последних размещённых.
func (r *PostgresRepository) ListOrders(ctx context.Context, phone string) ([]model.Order, error) {
	var orders []model.Order
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+orderColumns+`
			 FROM orders
			 WHERE user_phone = $1
			 ORDER BY placed_at DESC NULLS LAST, order_id DESC`,
			phone,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("scan order: %w", err)
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return orders, nil
}

// FindOrder возвращает заказ пользователя по номеру.
// ErrOrderNotOwned означает, что номер существует, но только у других пользователей.
func (r *PostgresRepository) FindOrder(ctx context.Context, phone, orderID string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_phone = $1 AND order_id = $2`,
		phone, orderID,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("find order: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`,
		orderID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order owner: %w", err)
	}
	if exists {
		return nil, ErrOrderNotOwned
	}
	return nil, ErrOrderNotFound
}

// SaveOrder сохраняет статус и отметки времени заказа, если его версия не изменилась с момента чтения.
// При успехе версия заказа увеличивается, иначе возвращается ErrOrderConflict.
func (r *PostgresRepository) SaveOrder(ctx context.Context, o *model.Order) error {
	var version int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE orders
			 SET status = $3, placed_at = $4, shipped_at = $5, out_for_delivery_at = $6,
			     delivered_at = $7, cancelled_at = $8, expected_delivery = $9, version = version + 1
			 WHERE user_phone = $1 AND order_id = $2 AND version = $10
			 RETURNING version`,
			o.UserPhone, o.ID, string(o.Status), o.PlacedAt, o.ShippedAt, o.OutForDeliveryAt,
			o.DeliveredAt, o.CancelledAt, o.ExpectedDelivery, o.Version,
		).Scan(&version)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrOrderConflict, o.ID)
		}
		return fmt.Errorf("update order: %w", err)
	}

	o.Version = version
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/order-assistant/internal/model"
)

// CreateRefund создаёт заявку на возврат. Строка заказа блокируется, чтобы статус не изменился
// между проверкой и записью; для недоставленного заказа возвращается ErrOrderIneligible.
func (r *PostgresRepository) CreateRefund(ctx context.Context, refund *model.RefundRequest) error {
	id, err := uuid.Parse(refund.ID)
	if err != nil {
		return fmt.Errorf("parse refund id: %w", err)
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx,
			`SELECT status FROM orders WHERE user_phone = $1 AND order_id = $2 FOR UPDATE`,
			refund.UserPhone, refund.OrderID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s", ErrOrderNotFound, refund.OrderID)
			}
			return fmt.Errorf("lock order for update: %w", err)
		}

		if model.OrderStatus(status) != model.OrderStatusDelivered {
			return fmt.Errorf("%w: order %s is %s", ErrOrderIneligible, refund.OrderID, status)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO refund_requests (id, order_id, user_phone, reason, status, requested_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			id, refund.OrderID, refund.UserPhone, refund.Reason, string(refund.Status), refund.RequestedAt,
		)
		if err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ListRefunds возвращает заявки пользователя, начиная с последних.
func (r *PostgresRepository) ListRefunds(ctx context.Context, phone string) ([]model.RefundRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, user_phone, reason, status, requested_at
		 FROM refund_requests
		 WHERE user_phone = $1
		 ORDER BY requested_at DESC`,
		phone,
	)
	if err != nil {
		return nil, fmt.Errorf("select refunds: %w", err)
	}
	defer rows.Close()

	var res []model.RefundRequest
	for rows.Next() {
		var (
			rr     model.RefundRequest
			id     uuid.UUID
			status string
		)
		if err := rows.Scan(&id, &rr.OrderID, &rr.UserPhone, &rr.Reason, &status, &rr.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan refund: %w", err)
		}
		rr.ID = id.String()
		rr.Status = model.RefundStatus(status)
		res = append(res, rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

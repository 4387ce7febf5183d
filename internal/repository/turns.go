package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/order-assistant/internal/model"
)

// AppendTurn добавляет реплику в историю переписки.
func (r *PostgresRepository) AppendTurn(ctx context.Context, turn model.ChatTurn) error {
	id, err := uuid.Parse(turn.ID)
	if err != nil {
		return fmt.Errorf("parse chat turn id: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO chat_turns (id, user_phone, message, reply, created_at) VALUES ($1, $2, $3, $4, $5)`,
			id, turn.UserPhone, turn.Message, turn.Reply, turn.CreatedAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert chat turn: %w", err)
	}
	return nil
}

// RecentTurns возвращает последние n реплик в хронологическом порядке.
func (r *PostgresRepository) RecentTurns(ctx context.Context, phone string, n int) ([]model.ChatTurn, error) {
	return r.queryTurns(ctx,
		`SELECT id, user_phone, message, reply, created_at FROM (
			SELECT id, user_phone, message, reply, created_at, seq
			FROM chat_turns WHERE user_phone = $1
			ORDER BY seq DESC LIMIT $2
		 ) recent ORDER BY seq`,
		phone, n,
	)
}

// ListTurns возвращает не более limit самых ранних реплик в хронологическом порядке.
func (r *PostgresRepository) ListTurns(ctx context.Context, phone string, limit int) ([]model.ChatTurn, error) {
	return r.queryTurns(ctx,
		`SELECT id, user_phone, message, reply, created_at
		 FROM chat_turns WHERE user_phone = $1
		 ORDER BY seq LIMIT $2`,
		phone, limit,
	)
}

// ClearTurns удаляет всю историю пользователя.
func (r *PostgresRepository) ClearTurns(ctx context.Context, phone string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM chat_turns WHERE user_phone = $1`, phone); err != nil {
		return fmt.Errorf("delete chat turns: %w", err)
	}
	return nil
}

func (r *PostgresRepository) queryTurns(ctx context.Context, sql string, args ...any) ([]model.ChatTurn, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select chat turns: %w", err)
	}

	turns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ChatTurn, error) {
		var (
			t  model.ChatTurn
			id uuid.UUID
		)
		err := row.Scan(&id, &t.UserPhone, &t.Message, &t.Reply, &t.CreatedAt)
		t.ID = id.String()
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan chat turns: %w", err)
	}
	return turns, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/order-assistant/internal/model"
)

// ErrEmailTaken возвращается, если email уже привязан к другому телефону.
var ErrEmailTaken = errors.New("email already used by another user")

const userColumns = `phone, name, COALESCE(email, ''), created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.Phone, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser возвращает пользователя по телефону, создавая его при первом обращении.
func (r *PostgresRepository) EnsureUser(ctx context.Context, phone string) (*model.User, error) {
	var u *model.User
	err := r.withRetry(ctx, func() error {
		var err error
		u, err = scanUser(r.pool.QueryRow(ctx,
			`INSERT INTO users (phone) VALUES ($1)
			 ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
			 RETURNING `+userColumns,
			phone,
		))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// GetUserByPhone возвращает пользователя по телефону.
func (r *PostgresRepository) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`,
		phone,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email без учёта регистра.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpsertUser создаёт пользователя или обновляет его имя и email.
func (r *PostgresRepository) UpsertUser(ctx context.Context, u model.User) error {
	var email *string
	if u.Email != "" {
		email = &u.Email
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (phone, name, email) VALUES ($1, $2, $3)
		 ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`,
		u.Phone, u.Name, email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
		}
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// DeleteUser удаляет пользователя вместе с заказами, заявками и историей.
func (r *PostgresRepository) DeleteUser(ctx context.Context, phone string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM users WHERE phone = $1`, phone); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

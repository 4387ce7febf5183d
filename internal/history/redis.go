// Package history хранит историю переписки в Redis.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/order-assistant/internal/model"
)

const keyPrefix = "assistant:history:"

// DefaultMaxTurns ограничивает длину списка одного пользователя; более старые реплики удаляются.
const DefaultMaxTurns = 500

// RedisStore хранит реплики пользователя в списке Redis, по ключу на телефон.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int64
}

// Option настраивает RedisStore.
type Option func(*RedisStore)

// WithMaxTurns задаёт число хранимых последних реплик.
func WithMaxTurns(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxTurns = int64(n)
		}
	}
}

// NewRedisStore создаёт хранилище. При ttl > 0 список истекает через ttl после последней записи.
func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, ttl: ttl, maxTurns: DefaultMaxTurns}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient создаёт клиента Redis и проверяет соединение.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type turnRecord struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Reply     string    `json:"reply"`
	CreatedAt time.Time `json:"createdAt"`
}

func key(phone string) string {
	return keyPrefix + phone
}

// AppendTurn добавляет реплику в конец списка и обрезает его до maxTurns последних реплик.
func (s *RedisStore) AppendTurn(ctx context.Context, turn model.ChatTurn) error {
	data, err := json.Marshal(turnRecord{
		ID:        turn.ID,
		Message:   turn.Message,
		Reply:     turn.Reply,
		CreatedAt: turn.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(turn.UserPhone), data)
	pipe.LTrim(ctx, key(turn.UserPhone), -s.maxTurns, -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key(turn.UserPhone), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// RecentTurns возвращает последние n реплик в хронологическом порядке.
func (s *RedisStore) RecentTurns(ctx context.Context, phone string, n int) ([]model.ChatTurn, error) {
	if n <= 0 {
		return nil, nil
	}
	return s.rangeTurns(ctx, phone, int64(-n), -1)
}

// ListTurns возвращает не более limit самых ранних реплик в хронологическом порядке.
func (s *RedisStore) ListTurns(ctx context.Context, phone string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.rangeTurns(ctx, phone, 0, int64(limit-1))
}

// ClearTurns удаляет всю историю пользователя.
func (s *RedisStore) ClearTurns(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, key(phone)).Err(); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

func (s *RedisStore) rangeTurns(ctx context.Context, phone string, start, stop int64) ([]model.ChatTurn, error) {
	items, err := s.client.LRange(ctx, key(phone), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}

	turns := make([]model.ChatTurn, 0, len(items))
	for _, item := range items {
		var rec turnRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal turn: %w", err)
		}
		turns = append(turns, model.ChatTurn{
			ID:        rec.ID,
			UserPhone: phone,
			Message:   rec.Message,
			Reply:     rec.Reply,
			CreatedAt: rec.CreatedAt,
		})
	}
	return turns, nil
}

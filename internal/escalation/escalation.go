// Package escalation передаёт запросы на подключение оператора во внешнюю систему.
package escalation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Escalator запрашивает подключение живого оператора к пользователю.
type Escalator interface {
	Escalate(ctx context.Context, phone string) error
}

// Requested описывает событие запроса оператора.
type Requested struct {
	Phone       string    `json:"userPhone"`
	RequestedAt time.Time `json:"requestedAt"`
}

// WebhookEscalator вызывает POST {baseURL}/escalate-to-human.
type WebhookEscalator struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebhookEscalator создаёт эскалатор для указанного адреса телефонного моста.
func NewWebhookEscalator(baseURL string, timeout time.Duration) *WebhookEscalator {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &WebhookEscalator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Escalate отправляет номер пользователя на телефонный мост.
func (w *WebhookEscalator) Escalate(ctx context.Context, phone string) error {
	body, err := json.Marshal(map[string]string{"userPhone": phone})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/escalate-to-human", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Noop только логирует запрос, когда внешняя система не настроена.
type Noop struct {
	Logger *zap.Logger
}

// Escalate логирует запрос и ничего не делает.
func (n Noop) Escalate(_ context.Context, phone string) error {
	if n.Logger != nil {
		n.Logger.Info("escalation requested but no target configured", zap.String("phone", phone))
	}
	return nil
}

// Package handler содержит HTTP-обработчики API ассистента поддержки заказов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/intent"
	"github.com/mmeshcher/order-assistant/internal/middleware"
	"github.com/mmeshcher/order-assistant/internal/model"
	"github.com/mmeshcher/order-assistant/internal/repository"
	"github.com/mmeshcher/order-assistant/internal/service"
	"github.com/mmeshcher/order-assistant/internal/validation"
)

const historyClearedMessage = "Chat history cleared successfully"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	HandleMessage(ctx context.Context, req service.Request) (*service.Outcome, error)
	GetHistory(ctx context.Context, phone string) ([]model.ChatTurn, error)
	ClearHistory(ctx context.Context, phone string) error
}

// Handler реализует HTTP-обработчики API ассистента.
type Handler struct {
	service Service
	logger  *zap.Logger
	metrics http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler может быть nil, тогда /metrics не публикуется.
func NewHandler(s Service, logger *zap.Logger, metricsHandler http.Handler) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		metrics: metricsHandler,
	}
}

type messageRequest struct {
	Message        string `json:"message"`
	RequesterPhone string `json:"requesterPhone"`
}

type messageResponse struct {
	Response string `json:"response"`
	Intent   string `json:"intent"`
	OrderID  string `json:"orderId,omitempty"`
	Action   string `json:"action"`
	RefundID string `json:"refundId,omitempty"`
}

// Message обрабатывает сообщение текстового чата.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	h.converse(w, r, intent.ModeChat)
}

// Call обрабатывает реплику голосового звонка.
func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	h.converse(w, r, intent.ModeCall)
}

func (h *Handler) converse(w http.ResponseWriter, r *http.Request, mode intent.Mode) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	phone := validation.NormalizePhone(req.RequesterPhone)
	if strings.TrimSpace(req.Message) == "" || !validation.IsValidPhone(phone) {
		writeError(w, http.StatusBadRequest, "Message and a valid requesterPhone are required")
		return
	}

	out, err := h.service.HandleMessage(r.Context(), service.Request{
		Mode:    mode,
		Phone:   phone,
		Message: req.Message,
	})
	if err != nil {
		h.serviceError(w, err, zap.String("phone", phone), zap.String("mode", string(mode)))
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Response: out.Reply,
		Intent:   string(out.Intent),
		OrderID:  out.OrderID,
		Action:   string(out.Action),
		RefundID: out.RefundID,
	})
}

type queryRequest struct {
	Query          string `json:"query"`
	Email          string `json:"email"`
	RequesterPhone string `json:"requesterPhone"`
}

type queryResponse struct {
	Talk    string `json:"talk"`
	Request string `json:"request"`
}

// Query обрабатывает запрос упрощённого голосового ассистента.
// Пользователь определяется по email, а при его отсутствии по номеру телефона.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	email := strings.TrimSpace(req.Email)
	phone := validation.NormalizePhone(req.RequesterPhone)
	if email == "" && !validation.IsValidPhone(phone) {
		writeError(w, http.StatusBadRequest, "Email or a valid requesterPhone is required")
		return
	}

	out, err := h.service.HandleMessage(r.Context(), service.Request{
		Mode:    intent.ModeSimple,
		Phone:   phone,
		Email:   email,
		Message: req.Query,
	})
	if err != nil {
		h.serviceError(w, err, zap.String("phone", phone), zap.String("mode", string(intent.ModeSimple)))
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Talk: out.Reply, Request: string(out.Intent)})
}

type turnResponse struct {
	Message   string `json:"message"`
	Reply     string `json:"reply"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	ChatHistory []turnResponse `json:"chatHistory"`
}

// GetHistory возвращает историю переписки пользователя.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	phone, ok := middleware.PhoneFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	turns, err := h.service.GetHistory(r.Context(), phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("get history error", zap.Error(err), zap.String("phone", phone))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	resp := historyResponse{ChatHistory: make([]turnResponse, 0, len(turns))}
	for _, t := range turns {
		resp.ChatHistory = append(resp.ChatHistory, turnResponse{
			Message:   t.Message,
			Reply:     t.Reply,
			Timestamp: t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ClearHistory удаляет историю переписки пользователя.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	phone, ok := middleware.PhoneFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid phone number")
		return
	}

	if err := h.service.ClearHistory(r.Context(), phone); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("clear history error", zap.Error(err), zap.String("phone", phone))
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": historyClearedMessage})
}

func (h *Handler) serviceError(w http.ResponseWriter, err error, fields ...zap.Field) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrUnknownMode):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("handle message error", append(fields, zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package service реализует бизнес-логику ассистента поддержки заказов.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/classifier"
	"github.com/mmeshcher/order-assistant/internal/intent"
	"github.com/mmeshcher/order-assistant/internal/metrics"
	"github.com/mmeshcher/order-assistant/internal/model"
	"github.com/mmeshcher/order-assistant/internal/repository"
)

var (
	// ErrClassifierUnreachable возвращается, если классификатор недоступен.
	ErrClassifierUnreachable = errors.New("classifier unreachable")
	// ErrUnknownMode возвращается для неизвестного режима разговора.
	ErrUnknownMode = errors.New("unknown conversation mode")
	// ErrInvalidRequest возвращается для пустого сообщения или запроса без идентификации пользователя.
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	// HistoryPageSize ограничивает число реплик в выдаче истории.
	HistoryPageSize = 50

	defaultClassifierTimeout = 20 * time.Second
)

var tracer = otel.Tracer("github.com/mmeshcher/order-assistant/internal/service")

// Store описывает хранилище пользователей, заказов и заявок на возврат.
type Store interface {
	EnsureUser(ctx context.Context, phone string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListOrders(ctx context.Context, phone string) ([]model.Order, error)
	FindOrder(ctx context.Context, phone, orderID string) (*model.Order, error)
	SaveOrder(ctx context.Context, order *model.Order) error
	CreateRefund(ctx context.Context, refund *model.RefundRequest) error
	ListRefunds(ctx context.Context, phone string) ([]model.RefundRequest, error)
}

// HistoryStore описывает хранилище истории переписки.
type HistoryStore interface {
	AppendTurn(ctx context.Context, turn model.ChatTurn) error
	// RecentTurns возвращает последние n реплик в хронологическом порядке.
	RecentTurns(ctx context.Context, phone string, n int) ([]model.ChatTurn, error)
	// ListTurns возвращает не более limit самых ранних реплик в хронологическом порядке.
	ListTurns(ctx context.Context, phone string, limit int) ([]model.ChatTurn, error)
	ClearTurns(ctx context.Context, phone string) error
}

// Classifier описывает внешнюю модель, возвращающую сырой текст с JSON-объектом.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Escalations принимает запросы на подключение оператора без ожидания результата.
type Escalations interface {
	Dispatch(phone string) bool
}

// Request описывает входящее сообщение пользователя.
type Request struct {
	Mode    intent.Mode
	Phone   string
	Email   string
	Message string
}

// Outcome описывает результат обработки сообщения.
type Outcome struct {
	Reply    string
	Intent   model.Intent
	OrderID  string
	Action   model.Action
	RefundID string
}

// Service содержит бизнес-логику ассистента.
type Service struct {
	store       Store
	history     HistoryStore
	classifier  Classifier
	escalations Escalations

	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// Option настраивает сервис.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics подключает счётчики Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClassifierTimeout ограничивает время ожидания классификатора.
func WithClassifierTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис поверх хранилищ, классификатора и диспетчера эскалаций.
func NewService(store Store, history HistoryStore, clf Classifier, escalations Escalations, opts ...Option) *Service {
	s := &Service{
		store:       store,
		history:     history,
		classifier:  clf,
		escalations: escalations,
		logger:      zap.NewNop(),
		timeout:     defaultClassifierTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleMessage обрабатывает одно сообщение пользователя и возвращает ответ ассистента.
func (s *Service) HandleMessage(ctx context.Context, req Request) (*Outcome, error) {
	profile, ok := intent.ProfileFor(req.Mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}

	ctx, span := tracer.Start(ctx, "service.HandleMessage")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.mode", string(req.Mode)))

	out, err := s.handle(ctx, profile, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("assistant.intent", string(out.Intent)),
		attribute.String("assistant.action", string(out.Action)),
	)
	s.metrics.IntentClassified(string(req.Mode), string(out.Intent))
	if out.Action != model.ActionNone {
		s.metrics.ActionPerformed(string(out.Action))
	}
	return out, nil
}

func (s *Service) handle(ctx context.Context, profile intent.Profile, req Request) (*Outcome, error) {
	user, err := s.resolveUser(ctx, profile, req)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Без пользователя некуда записывать историю.
		return &Outcome{Reply: replyAccountNotFound, Intent: model.IntentUnknown, Action: model.ActionNone}, nil
	}
	if err != nil {
		return nil, err
	}

	orders, err := s.store.ListOrders(ctx, user.Phone)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	refunds, err := s.store.ListRefunds(ctx, user.Phone)
	if err != nil {
		return nil, fmt.Errorf("list refunds: %w", err)
	}

	var turns []model.ChatTurn
	if profile.HistoryLimit > 0 {
		turns, err = s.history.RecentTurns(ctx, user.Phone, profile.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("recent turns: %w", err)
		}
	}

	prompt := buildPrompt(profile, user, orders, refunds, turns, req.Message)

	raw, err := s.classify(ctx, prompt)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		s.logger.Warn("classifier timed out", zap.String("phone", user.Phone), zap.Duration("timeout", s.timeout))
		s.metrics.ClassifierFailed("timeout")
		out := &Outcome{Reply: replyClassifierTimeout, Intent: model.IntentUnknown, Action: model.ActionNone}
		s.record(ctx, user.Phone, req.Message, out)
		return out, nil
	case errors.Is(err, classifier.ErrEmptyResponse):
		// Пустой ответ обрабатывается как неразборчивый вывод.
	case err != nil:
		s.metrics.ClassifierFailed("unavailable")
		return nil, fmt.Errorf("%w: %w", ErrClassifierUnreachable, err)
	}

	var res intent.Result
	if err == nil {
		res, err = profile.Normalizer.Normalize(raw)
	}
	if err != nil {
		s.logger.Warn("classifier output malformed", zap.String("phone", user.Phone), zap.Error(err))
		s.metrics.ClassifierFailed("malformed")
		out := &Outcome{Reply: replyMalformed, Intent: model.IntentUnknown, Action: model.ActionNone}
		s.record(ctx, user.Phone, req.Message, out)
		return out, nil
	}

	out, err := s.route(ctx, profile, user, req.Message, res)
	if err != nil {
		return nil, err
	}

	s.record(ctx, user.Phone, req.Message, out)
	return out, nil
}

func (s *Service) resolveUser(ctx context.Context, profile intent.Profile, req Request) (*model.User, error) {
	email := strings.TrimSpace(req.Email)
	if profile.Mode == intent.ModeSimple && email != "" {
		u, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		return u, nil
	}

	if req.Phone == "" {
		return nil, fmt.Errorf("%w: requester phone is required", ErrInvalidRequest)
	}

	u, err := s.store.EnsureUser(ctx, req.Phone)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

func (s *Service) classify(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.classifier.Classify(cctx, prompt)
}

// record добавляет реплику в историю. Ответ уже вычислен, поэтому сбой только логируется.
func (s *Service) record(ctx context.Context, phone, message string, out *Outcome) {
	turn := model.ChatTurn{
		ID:        uuid.NewString(),
		UserPhone: phone,
		Message:   message,
		Reply:     out.Reply,
		CreatedAt: s.now(),
	}
	if err := s.history.AppendTurn(ctx, turn); err != nil {
		s.logger.Error("failed to append chat turn", zap.String("phone", phone), zap.Error(err))
	}
}

// GetHistory возвращает историю переписки пользователя, начиная с самых ранних реплик.
func (s *Service) GetHistory(ctx context.Context, phone string) ([]model.ChatTurn, error) {
	if _, err := s.store.GetUserByPhone(ctx, phone); err != nil {
		return nil, err
	}
	return s.history.ListTurns(ctx, phone, HistoryPageSize)
}

// ClearHistory удаляет всю историю переписки пользователя.
func (s *Service) ClearHistory(ctx context.Context, phone string) error {
	if _, err := s.store.GetUserByPhone(ctx, phone); err != nil {
		return err
	}
	return s.history.ClearTurns(ctx, phone)
}

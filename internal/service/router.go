package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/extract"
	"github.com/mmeshcher/order-assistant/internal/intent"
	"github.com/mmeshcher/order-assistant/internal/model"
	"github.com/mmeshcher/order-assistant/internal/repository"
)

const (
	maxSaveAttempts  = 3
	shortMessageSize = 100
)

const (
	replyMalformed         = "Sorry, I didn't get that. Could you please repeat?"
	replyClarify           = "Sorry, I didn't understand. Could you clarify?"
	replyClassifierTimeout = "Sorry, this is taking longer than expected. Please try again in a moment."
	replyAccountNotFound   = "Sorry, we couldn't find your account. Please check your phone number or register first."

	replyAskOrderID       = "May I know your order ID?"
	replyAskCancelOrderID = "May I know your order ID to cancel?"
	replyAskRefundOrderID = "May I know your order ID for the refund?"

	replyOrderStatus      = "Your order %s (%s) is currently %s."
	replyOrderUnknown     = "Sorry, I couldn't find order %s."
	replyNoSuchOrder      = "No order found with ID %s."
	replyNotYourOrder     = "Order %s is not linked to your account."
	replyCannotCancel     = "Order %s cannot be cancelled (already %s)."
	replyCancelled        = "Order %s has been cancelled."
	replyNoOrdersToCancel = "You don't have any orders to cancel."
	replyNoCancellable    = "You don't have any cancellable orders."

	replyCannotRefund     = "Order %s cannot be refunded (not delivered)."
	replyRefundSent       = "Refund request for order %s has been submitted. Our team will review it shortly."
	replyNoOrdersToRefund = "You don't have any orders to refund."
	replyNoDelivered      = "You don't have any delivered orders to refund."
	defaultRefundReason   = "Requested via AI assistant"

	replyConnecting = "Connecting you to a human agent now..."
)

// route применяет бизнес-правила к нормализованному намерению. Хранилище — единственный источник истины
// о статусе заказа, классификатор даёт только намерение и подсказки.
func (s *Service) route(ctx context.Context, p intent.Profile, user *model.User, message string, res intent.Result) (*Outcome, error) {
	out := &Outcome{Intent: res.Intent, Action: model.ActionNone}

	// Классификатор сам просит уточнение.
	if res.HasMissingData() {
		out.Reply = passthrough(res.Reply)
		return out, nil
	}

	kind := res.Intent.Canonical()
	acts := res.ActionRequired || p.AlwaysEscalate

	switch kind {
	case model.IntentCancelOrder, model.IntentRefundRequest, model.IntentSpeakToHuman:
		if !acts {
			out.Reply = passthrough(res.Reply)
			return out, nil
		}
	}

	orderID := res.OrderID
	if orderID == "" {
		if id, ok := extract.OrderID(message); ok {
			orderID = id
		}
	}
	out.OrderID = orderID

	switch kind {
	case model.IntentOrderStatus:
		if orderID == "" {
			return missingInfo(out, replyAskOrderID), nil
		}
		return s.orderStatus(ctx, user, orderID, out)

	case model.IntentCancelOrder:
		if orderID == "" && !p.ImplicitTarget {
			return missingInfo(out, replyAskCancelOrderID), nil
		}
		return s.cancelOrder(ctx, user, orderID, out)

	case model.IntentRefundRequest:
		if orderID == "" && !p.ImplicitTarget {
			return missingInfo(out, replyAskRefundOrderID), nil
		}
		return s.requestRefund(ctx, user, orderID, message, out)

	case model.IntentSpeakToHuman:
		s.escalations.Dispatch(user.Phone)
		out.Action = model.ActionEscalated
		if p.AlwaysEscalate {
			out.Reply = replyConnecting
		} else {
			out.Reply = passthrough(res.Reply)
		}
		return out, nil

	default:
		out.Reply = passthrough(res.Reply)
		return out, nil
	}
}

func (s *Service) orderStatus(ctx context.Context, user *model.User, orderID string, out *Outcome) (*Outcome, error) {
	order, err := s.store.FindOrder(ctx, user.Phone, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrOrderNotOwned) {
		out.Reply = fmt.Sprintf(replyOrderUnknown, orderID)
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", orderID, err)
	}

	out.Reply = fmt.Sprintf(replyOrderStatus, order.ID, order.Product, order.Status.Label())
	return out, nil
}

func (s *Service) cancelOrder(ctx context.Context, user *model.User, orderID string, out *Outcome) (*Outcome, error) {
	for attempt := 1; ; attempt++ {
		order, denial, err := s.cancelTarget(ctx, user, orderID)
		if err != nil {
			return nil, err
		}
		if denial != "" {
			out.Reply = denial
			return out, nil
		}

		out.OrderID = order.ID
		if err := order.Cancel(s.now()); err != nil {
			out.Reply = fmt.Sprintf(replyCannotCancel, order.ID, order.Status.Label())
			return out, nil
		}

		err = s.store.SaveOrder(ctx, order)
		if errors.Is(err, repository.ErrOrderConflict) && attempt < maxSaveAttempts {
			s.logger.Info("order changed concurrently, re-evaluating",
				zap.String("phone", user.Phone), zap.String("order", order.ID), zap.Int("attempt", attempt))
			// Следующая попытка читает заказ заново по его номеру.
			orderID = order.ID
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save order %s: %w", order.ID, err)
		}

		s.logger.Info("order cancelled", zap.String("phone", user.Phone), zap.String("order", order.ID))
		out.Action = model.ActionOrderCancelled
		out.Reply = fmt.Sprintf(replyCancelled, order.ID)
		return out, nil
	}
}

// cancelTarget выбирает заказ для отмены. Непустой denial означает отказ без изменений.
func (s *Service) cancelTarget(ctx context.Context, user *model.User, orderID string) (*model.Order, string, error) {
	if orderID == "" {
		orders, err := s.store.ListOrders(ctx, user.Phone)
		if err != nil {
			return nil, "", fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			return nil, replyNoOrdersToCancel, nil
		}
		order := latest(orders, (*model.Order).Cancellable, func(o *model.Order) *time.Time { return o.PlacedAt })
		if order == nil {
			return nil, replyNoCancellable, nil
		}
		return order, "", nil
	}

	order, denial, err := s.findOwned(ctx, user, orderID)
	if err != nil || denial != "" {
		return nil, denial, err
	}
	if !order.Cancellable() {
		return nil, fmt.Sprintf(replyCannotCancel, order.ID, order.Status.Label()), nil
	}
	return order, "", nil
}

func (s *Service) requestRefund(ctx context.Context, user *model.User, orderID, message string, out *Outcome) (*Outcome, error) {
	order, denial, err := s.refundTarget(ctx, user, orderID)
	if err != nil {
		return nil, err
	}
	if denial != "" {
		out.Reply = denial
		return out, nil
	}
	out.OrderID = order.ID

	refund := &model.RefundRequest{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		UserPhone:   user.Phone,
		Reason:      refundReason(message),
		Status:      model.RefundStatusPending,
		RequestedAt: s.now(),
	}

	err = s.store.CreateRefund(ctx, refund)
	switch {
	case errors.Is(err, repository.ErrOrderIneligible):
		// Заказ изменился между чтением и записью.
		out.Reply = fmt.Sprintf(replyCannotRefund, order.ID)
		return out, nil
	case errors.Is(err, repository.ErrOrderNotFound):
		out.Reply = fmt.Sprintf(replyNoSuchOrder, order.ID)
		return out, nil
	case err != nil:
		return nil, fmt.Errorf("create refund for %s: %w", order.ID, err)
	}

	s.logger.Info("refund requested", zap.String("phone", user.Phone), zap.String("order", order.ID))
	out.Action = model.ActionRefundRequested
	out.RefundID = refund.ID
	out.Reply = fmt.Sprintf(replyRefundSent, order.ID)
	return out, nil
}

func (s *Service) refundTarget(ctx context.Context, user *model.User, orderID string) (*model.Order, string, error) {
	if orderID == "" {
		orders, err := s.store.ListOrders(ctx, user.Phone)
		if err != nil {
			return nil, "", fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			return nil, replyNoOrdersToRefund, nil
		}
		order := latest(orders, (*model.Order).Refundable, func(o *model.Order) *time.Time { return o.DeliveredAt })
		if order == nil {
			return nil, replyNoDelivered, nil
		}
		return order, "", nil
	}

	order, denial, err := s.findOwned(ctx, user, orderID)
	if err != nil || denial != "" {
		return nil, denial, err
	}
	if !order.Refundable() {
		return nil, fmt.Sprintf(replyCannotRefund, order.ID), nil
	}
	return order, "", nil
}

func (s *Service) findOwned(ctx context.Context, user *model.User, orderID string) (*model.Order, string, error) {
	order, err := s.store.FindOrder(ctx, user.Phone, orderID)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, fmt.Sprintf(replyNoSuchOrder, orderID), nil
	case errors.Is(err, repository.ErrOrderNotOwned):
		return nil, fmt.Sprintf(replyNotYourOrder, orderID), nil
	case err != nil:
		return nil, "", fmt.Errorf("find order %s: %w", orderID, err)
	}
	return order, "", nil
}

// latest возвращает подходящий заказ с наибольшей отметкой времени.
func latest(orders []model.Order, eligible func(*model.Order) bool, at func(*model.Order) *time.Time) *model.Order {
	var best *model.Order
	var bestAt time.Time
	for i := range orders {
		o := &orders[i]
		if !eligible(o) {
			continue
		}
		var t time.Time
		if ts := at(o); ts != nil {
			t = *ts
		}
		if best == nil || t.After(bestAt) {
			best, bestAt = o, t
		}
	}
	if best == nil {
		return nil
	}
	res := *best
	return &res
}

func refundReason(message string) string {
	if reason, ok := extract.Reason(message); ok {
		return reason
	}
	if len([]rune(message)) < shortMessageSize {
		return defaultRefundReason
	}
	return message
}

func missingInfo(out *Outcome, reply string) *Outcome {
	out.Intent = model.IntentMissingInfo
	out.Reply = reply
	return out
}

func passthrough(reply string) string {
	if strings.TrimSpace(reply) == "" {
		return replyClarify
	}
	return reply
}

// Package model содержит доменные сущности ассистента поддержки.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTransition возвращается при попытке недопустимого перехода статуса заказа.
var ErrInvalidTransition = errors.New("invalid order status transition")

// User представляет покупателя. Телефон является единственным ключом идентичности.
type User struct {
	Phone     string
	Name      string
	Email     string
	CreatedAt time.Time
}

// OrderStatus описывает стадию жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// IsTerminal сообщает, что из статуса нет переходов.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Label возвращает статус в виде, пригодном для ответа пользователю.
func (s OrderStatus) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// transitions перечисляет разрешённые рёбра автомата состояний заказа.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
}

// Order описывает заказ пользователя вместе с отметками времени переходов.
type Order struct {
	ID               string
	UserPhone        string
	Product          string
	Status           OrderStatus
	PlacedAt         *time.Time
	ShippedAt        *time.Time
	OutForDeliveryAt *time.Time
	DeliveredAt      *time.Time
	CancelledAt      *time.Time
	ExpectedDelivery *time.Time
	// Version растёт при каждой записи и используется для оптимистичной блокировки.
	Version int64
}

// Cancellable сообщает, можно ли отменить заказ в текущем статусе.
func (o *Order) Cancellable() bool {
	return o.canMoveTo(OrderStatusCancelled)
}

// Refundable сообщает, можно ли оформить возврат по заказу.
func (o *Order) Refundable() bool {
	return o.Status == OrderStatusDelivered
}

// Cancel переводит заказ в статус cancelled и фиксирует время отмены.
func (o *Order) Cancel(at time.Time) error {
	return o.Transition(OrderStatusCancelled, at)
}

// Transition выполняет переход статуса и один раз проставляет соответствующую отметку времени.
func (o *Order) Transition(to OrderStatus, at time.Time) error {
	if !o.canMoveTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	slot := o.timestampFor(to)
	if *slot != nil {
		return fmt.Errorf("%w: %s already reached", ErrInvalidTransition, to)
	}

	t := at
	*slot = &t
	o.Status = to
	return nil
}

func (o *Order) canMoveTo(to OrderStatus) bool {
	for _, next := range transitions[o.Status] {
		if next == to {
			return true
		}
	}
	return false
}

func (o *Order) timestampFor(s OrderStatus) **time.Time {
	switch s {
	case OrderStatusShipped:
		return &o.ShippedAt
	case OrderStatusOutForDelivery:
		return &o.OutForDeliveryAt
	case OrderStatusDelivered:
		return &o.DeliveredAt
	case OrderStatusCancelled:
		return &o.CancelledAt
	default:
		return &o.PlacedAt
	}
}

// RefundStatus описывает статус заявки на возврат.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// RefundRequest описывает заявку на возврат по доставленному заказу.
type RefundRequest struct {
	ID          string
	OrderID     string
	UserPhone   string
	Reason      string
	Status      RefundStatus
	RequestedAt time.Time
}

// ChatTurn описывает одну пару «сообщение пользователя и ответ ассистента».
type ChatTurn struct {
	ID        string
	UserPhone string
	Message   string
	Reply     string
	CreatedAt time.Time
}

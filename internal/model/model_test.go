package model

import (
	"errors"
	"testing"
	"time"
)

func placedOrder() *Order {
	placed := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	return &Order{ID: "1001", UserPhone: "9876543210", Status: OrderStatusPlaced, PlacedAt: &placed}
}

func TestTransition_FullLifecycle(t *testing.T) {
	o := placedOrder()
	at := time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC)

	for _, next := range []OrderStatus{OrderStatusShipped, OrderStatusOutForDelivery, OrderStatusDelivered} {
		if err := o.Transition(next, at); err != nil {
			t.Fatalf("Transition(%s) error: %v", next, err)
		}
		at = at.Add(24 * time.Hour)
	}

	if o.Status != OrderStatusDelivered {
		t.Fatalf("status = %s, want delivered", o.Status)
	}
	if o.ShippedAt == nil || o.OutForDeliveryAt == nil || o.DeliveredAt == nil {
		t.Fatalf("timestamps not set: %+v", o)
	}
	if o.CancelledAt != nil {
		t.Fatalf("cancelledAt must stay empty for delivered order")
	}
}

func TestTransition_TerminalStatesHaveNoExits(t *testing.T) {
	at := time.Now()

	delivered := placedOrder()
	delivered.Status = OrderStatusDelivered
	if err := delivered.Cancel(at); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel delivered: err = %v, want ErrInvalidTransition", err)
	}
	if delivered.CancelledAt != nil {
		t.Fatalf("delivered order must not get cancelledAt")
	}

	cancelled := placedOrder()
	if err := cancelled.Cancel(at); err != nil {
		t.Fatalf("first cancel error: %v", err)
	}
	first := *cancelled.CancelledAt
	if err := cancelled.Cancel(at.Add(time.Hour)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second cancel: err = %v, want ErrInvalidTransition", err)
	}
	if !cancelled.CancelledAt.Equal(first) {
		t.Fatalf("cancelledAt changed on second cancel")
	}
}

func TestTransition_NoSkippingStages(t *testing.T) {
	o := placedOrder()
	if err := o.Transition(OrderStatusDelivered, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("placed -> delivered: err = %v, want ErrInvalidTransition", err)
	}
	if o.Status != OrderStatusPlaced {
		t.Fatalf("status changed on rejected transition: %s", o.Status)
	}
}

func TestCancellableAndRefundable(t *testing.T) {
	tests := []struct {
		status     OrderStatus
		cancelable bool
		refundable bool
	}{
		{OrderStatusPlaced, true, false},
		{OrderStatusShipped, true, false},
		{OrderStatusOutForDelivery, true, false},
		{OrderStatusDelivered, false, true},
		{OrderStatusCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			o := &Order{Status: tt.status}
			if got := o.Cancellable(); got != tt.cancelable {
				t.Fatalf("Cancellable() = %v, want %v", got, tt.cancelable)
			}
			if got := o.Refundable(); got != tt.refundable {
				t.Fatalf("Refundable() = %v, want %v", got, tt.refundable)
			}
		})
	}
}

func TestIntentCanonical(t *testing.T) {
	if IntentTrackOrder.Canonical() != IntentOrderStatus {
		t.Fatalf("track_order must fold into order_status")
	}
	if IntentConnectHuman.Canonical() != IntentSpeakToHuman {
		t.Fatalf("connect_human must fold into speak_to_human")
	}
	if IntentChat.Canonical() != IntentGeneralQuery {
		t.Fatalf("chat must fold into general_query")
	}
	if IntentCancelOrder.Canonical() != IntentCancelOrder {
		t.Fatalf("cancel_order must stay as is")
	}
}

func TestOrderStatusLabel(t *testing.T) {
	if got := OrderStatusOutForDelivery.Label(); got != "out for delivery" {
		t.Fatalf("Label() = %q", got)
	}
}

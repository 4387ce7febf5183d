package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/order-assistant/internal/intent"
	"github.com/mmeshcher/order-assistant/internal/model"
)

const dateLayout = "Mon Jan 02 2006"

func buildPrompt(p intent.Profile, user *model.User, orders []model.Order, refunds []model.RefundRequest, turns []model.ChatTurn, message string) string {
	var b strings.Builder

	b.WriteString(p.Preamble)
	b.WriteString("\n\nUser Info:\n")
	name := user.Name
	if name == "" {
		name = "Unknown"
	}
	fmt.Fprintf(&b, "- Name: %s\n- Phone: %s\n", name, user.Phone)

	b.WriteString("\nOrder Data:\n")
	if len(orders) == 0 {
		b.WriteString("No orders found.\n")
	}
	for i, o := range orders {
		fmt.Fprintf(&b, "Order %d:\n", i+1)
		fmt.Fprintf(&b, "  - Order ID: %s\n", o.ID)
		fmt.Fprintf(&b, "  - Product: %s\n", o.Product)
		fmt.Fprintf(&b, "  - Status: %s\n", o.Status)
		fmt.Fprintf(&b, "  - Placed At: %s\n", formatDate(o.PlacedAt))
		fmt.Fprintf(&b, "  - Shipped At: %s\n", formatDate(o.ShippedAt))
		fmt.Fprintf(&b, "  - Out For Delivery At: %s\n", formatDate(o.OutForDeliveryAt))
		fmt.Fprintf(&b, "  - Delivered At: %s\n", formatDate(o.DeliveredAt))
		fmt.Fprintf(&b, "  - Cancelled At: %s\n", formatDate(o.CancelledAt))
		fmt.Fprintf(&b, "  - Expected Delivery: %s\n", formatDate(o.ExpectedDelivery))
	}

	if len(refunds) > 0 {
		b.WriteString("\nRefund Requests:\n")
		for _, r := range refunds {
			fmt.Fprintf(&b, "- Order %s: %s (requested %s, reason: %s)\n",
				r.OrderID, r.Status, r.RequestedAt.Format(dateLayout), r.Reason)
		}
	}

	if len(turns) > 0 {
		b.WriteString("\nRecent Conversation:\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Message, t.Reply)
		}
	}

	fmt.Fprintf(&b, "\nCurrent Message:\n%q\n", message)

	b.WriteString("\nInstructions:\n")
	b.WriteString("- Use only the order data above for order details; never invent orders or statuses.\n")
	b.WriteString("- Refunds are possible only for delivered orders.\n")
	b.WriteString("- Cancellation is possible only for orders that are not delivered or cancelled.\n")
	b.WriteString("- If you need clarification, ask the user for it.\n\n")
	b.WriteString(p.SchemaInstructions())
	b.WriteString("\n")

	return b.String()
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Format(dateLayout)
}

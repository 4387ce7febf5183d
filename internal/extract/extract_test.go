package extract

import "testing"

func TestOrderID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "plain id", text: "my order 10342 please", want: "10342", ok: true},
		{name: "no digits", text: "hello", ok: false},
		{name: "too short", text: "order 123", ok: false},
		{name: "hash prefix", text: "cancel order #1003", want: "1003", ok: true},
		{name: "first run wins", text: "1001 and 1002", want: "1001", ok: true},
		{name: "year is misread", text: "bought it in 2024", want: "2024", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OrderID(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("OrderID(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "because", text: "refund this because it arrived broken", want: "it arrived broken", ok: true},
		{name: "due to", text: "Refund 1002 DUE TO  a missing part ", want: "a missing part", ok: true},
		{name: "for", text: "I want a refund for the broken screen", want: "the broken screen", ok: true},
		{name: "no connective", text: "refund order 1002", ok: false},
		{name: "inside word ignored", text: "it has stopped", ok: false},
		{name: "dangling connective", text: "refund because ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Reason(tt.text)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("Reason(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.ok)
			}
		})
	}
}

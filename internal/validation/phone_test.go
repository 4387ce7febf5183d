package validation

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "9876543210", want: "9876543210"},
		{in: " +91 98765-43210 ", want: "+919876543210"},
		{in: "(555) 010 9999", want: "5550109999"},
		{in: "12+34", want: "1234"},
		{in: "", want: ""},
		{in: "call me", want: ""},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{phone: "9876543210", want: true},
		{phone: "+919876543210", want: true},
		{phone: "1234567", want: true},
		{phone: "123456", want: false},
		{phone: "1234567890123456", want: false},
		{phone: "+", want: false},
		{phone: "98765x3210", want: false},
		{phone: "", want: false},
	}

	for _, tt := range tests {
		if got := IsValidPhone(tt.phone); got != tt.want {
			t.Errorf("IsValidPhone(%q) = %v, want %v", tt.phone, got, tt.want)
		}
	}
}

// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// NormalizePhone убирает из номера всё, кроме цифр и ведущего "+".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)

	var b strings.Builder
	b.Grow(len(phone))
	for i, ch := range phone {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '+' && i == 0:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// IsValidPhone проверяет нормализованный номер: необязательный "+" и от 7 до 15 цифр.
func IsValidPhone(phone string) bool {
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return false
	}
	for _, ch := range digits {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

// Package extract содержит эвристики извлечения номера заказа и причины возврата из текста.
//
// Это не парсеры: любая последовательность из четырёх и более цифр считается номером заказа,
// поэтому год («2024»), телефон или количество могут быть ошибочно приняты за номер.
// Это известное ограничение, и оно не исправляется дополнительными правилами.
package extract

import (
	"regexp"
	"strings"
)

var (
	orderIDPattern = regexp.MustCompile(`\d{4,}`)
	reasonPattern  = regexp.MustCompile(`(?i)\b(?:because|due to|as|for)\s+(.+)`)
)

// OrderID возвращает первую последовательность из четырёх и более цифр.
func OrderID(text string) (string, bool) {
	m := orderIDPattern.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}

// Reason возвращает текст после первой причинной связки (because, due to, as, for).
func Reason(text string) (string, bool) {
	m := reasonPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}

	reason := strings.TrimSpace(m[1])
	if reason == "" {
		return "", false
	}
	return reason, true
}

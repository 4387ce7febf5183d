package intent

import (
	"fmt"
	"strings"
)

// Mode задаёт режим разговора, определяющий схему классификатора и правила маршрутизации.
type Mode string

const (
	ModeChat   Mode = "chat"
	ModeCall   Mode = "call"
	ModeSimple Mode = "simple"
)

// Profile связывает режим разговора с нормализатором и параметрами маршрутизации.
type Profile struct {
	Mode       Mode
	Normalizer *Normalizer
	// HistoryLimit — число последних реплик в контексте; 0 отключает чтение истории.
	HistoryLimit int
	// ImplicitTarget разрешает выбирать заказ без явного номера.
	ImplicitTarget bool
	// AlwaysEscalate вызывает оператора без флага actionRequired и отвечает фиксированной фразой.
	AlwaysEscalate bool
	Preamble       string
}

var profiles = map[Mode]Profile{
	ModeChat: {
		Mode:           ModeChat,
		Normalizer:     Chat,
		HistoryLimit:   10,
		ImplicitTarget: true,
		Preamble: "You are a friendly, conversational customer-support assistant for an online store. " +
			"The user is chatting with you by text. Be warm and concise, remember the recent conversation " +
			"and help with order tracking, cancellations, refunds and questions about the store.",
	},
	ModeCall: {
		Mode:         ModeCall,
		Normalizer:   Call,
		HistoryLimit: 3,
		Preamble: "You are an expressive, empathetic voice assistant for an online store. " +
			"The user is on a phone call and your reply will be read aloud, so answer in one natural, " +
			"flowing message as a human agent would.",
	},
	ModeSimple: {
		Mode:           ModeSimple,
		Normalizer:     Simple,
		AlwaysEscalate: true,
		Preamble: "You are a precise voice assistant for an online store. " +
			"Ask for missing information such as the order ID when needed and never invent fields or values.",
	},
}

// ProfileFor возвращает профиль для режима.
func ProfileFor(mode Mode) (Profile, bool) {
	p, ok := profiles[mode]
	return p, ok
}

// ParseMode разбирает название режима без учёта регистра.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := profiles[m]; !ok {
		return "", fmt.Errorf("unknown conversation mode %q", s)
	}
	return m, nil
}

// SchemaInstructions возвращает часть подсказки, описывающую ожидаемый JSON.
func (p Profile) SchemaInstructions() string {
	labels := strings.Join(p.Normalizer.Labels(), " | ")

	if p.Normalizer.Schema() == SchemaMinimal {
		return "Respond ONLY with one JSON object in this exact format and nothing else:\n" +
			"{\n" +
			"  \"talk\": \"<your helpful reply>\",\n" +
			"  \"request\": \"" + labels + "\"\n" +
			"}"
	}

	return "Respond ONLY with one JSON object in this exact format and nothing else:\n" +
		"{\n" +
		"  \"response\": \"<reply for the user>\",\n" +
		"  \"intent\": \"" + labels + "\",\n" +
		"  \"orderId\": \"<order id if relevant, else null>\",\n" +
		"  \"actionRequired\": true | false,\n" +
		"  \"missingData\": \"ask for order id | ask user for refund reason | null\"\n" +
		"}"
}

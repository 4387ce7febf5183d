// Package intent приводит недоверенный вывод классификатора к закрытому набору намерений.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmeshcher/order-assistant/internal/model"
)

// ErrMalformedOutput возвращается, если вывод классификатора не удаётся разобрать по ожидаемой схеме.
var ErrMalformedOutput = errors.New("classifier output malformed")

// Schema определяет формат JSON, который ожидается от классификатора.
type Schema int

const (
	// SchemaMinimal — короткий формат {"talk", "request"}.
	SchemaMinimal Schema = iota
	// SchemaStructured — формат {"response", "intent", "orderId", "actionRequired", "missingData"}.
	SchemaStructured
)

func (s Schema) String() string {
	if s == SchemaMinimal {
		return "minimal"
	}
	return "structured"
}

// Result содержит нормализованный результат классификации.
type Result struct {
	Intent model.Intent
	// Label хранит исходную метку классификатора.
	Label          string
	Recognized     bool
	Reply          string
	OrderID        string
	ActionRequired bool
	MissingData    string
}

// HasMissingData сообщает, что классификатор сам запросил уточнение.
func (r Result) HasMissingData() bool {
	return r.MissingData != "" && r.MissingData != "null"
}

// Normalizer проверяет и приводит вывод классификатора для одной схемы и одного набора меток.
type Normalizer struct {
	name     string
	schema   Schema
	labels   map[string]model.Intent
	order    []string
	fallback model.Intent
}

func newNormalizer(name string, schema Schema, fallback model.Intent, labels ...model.Intent) *Normalizer {
	n := &Normalizer{
		name:     name,
		schema:   schema,
		labels:   make(map[string]model.Intent, len(labels)),
		fallback: fallback,
	}
	for _, l := range labels {
		n.labels[string(l)] = l
		n.order = append(n.order, string(l))
	}
	return n
}

var (
	// Simple использует минимальную схему, нераспознанное намерение становится general_query.
	Simple = newNormalizer("simple", SchemaMinimal, model.IntentGeneralQuery,
		model.IntentOrderStatus,
		model.IntentCancelOrder,
		model.IntentRefundRequest,
		model.IntentSpeakToHuman,
		model.IntentGeneralQuery,
		model.IntentMissingInfo,
	)

	// Call использует структурированную схему голосового режима, нераспознанное намерение становится unknown.
	Call = newNormalizer("call", SchemaStructured, model.IntentUnknown,
		model.IntentTrackOrder,
		model.IntentCancelOrder,
		model.IntentRefundRequest,
		model.IntentConnectHuman,
		model.IntentUnknown,
	)

	// Chat использует структурированную схему текстового чата и дополнительно допускает метку chat.
	Chat = newNormalizer("chat", SchemaStructured, model.IntentUnknown,
		model.IntentChat,
		model.IntentTrackOrder,
		model.IntentCancelOrder,
		model.IntentRefundRequest,
		model.IntentConnectHuman,
		model.IntentUnknown,
	)
)

// Name возвращает имя конфигурации нормализатора.
func (n *Normalizer) Name() string { return n.name }

// Schema возвращает ожидаемую схему вывода.
func (n *Normalizer) Schema() Schema { return n.schema }

// Fallback возвращает намерение для нераспознанных меток.
func (n *Normalizer) Fallback() model.Intent { return n.fallback }

// Labels возвращает допустимые метки в порядке объявления схемы.
func (n *Normalizer) Labels() []string {
	res := make([]string, len(n.order))
	copy(res, n.order)
	return res
}

// Normalize разбирает сырой вывод классификатора.
func (n *Normalizer) Normalize(raw string) (Result, error) {
	obj, ok := ExtractJSON(raw)
	if !ok {
		return Result{}, fmt.Errorf("%w: no json object found", ErrMalformedOutput)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	if n.schema == SchemaMinimal {
		return n.normalizeMinimal(fields)
	}
	return n.normalizeStructured(fields)
}

func (n *Normalizer) normalizeMinimal(fields map[string]json.RawMessage) (Result, error) {
	label, err := requiredString(fields, "request")
	if err != nil {
		return Result{}, err
	}
	reply, err := optionalString(fields, "talk")
	if err != nil {
		return Result{}, err
	}

	res := n.classify(label)
	res.Reply = reply
	// В минимальной схеме нет флага действия: действие выполняется всегда.
	res.ActionRequired = true
	return res, nil
}

func (n *Normalizer) normalizeStructured(fields map[string]json.RawMessage) (Result, error) {
	label, err := requiredString(fields, "intent")
	if err != nil {
		return Result{}, err
	}
	reply, err := optionalString(fields, "response")
	if err != nil {
		return Result{}, err
	}
	orderID, err := optionalID(fields, "orderId")
	if err != nil {
		return Result{}, err
	}
	action, err := optionalBool(fields, "actionRequired")
	if err != nil {
		return Result{}, err
	}
	missing, err := optionalString(fields, "missingData")
	if err != nil {
		return Result{}, err
	}

	res := n.classify(label)
	res.Reply = reply
	res.OrderID = orderID
	res.ActionRequired = action
	res.MissingData = missing
	return res, nil
}

func (n *Normalizer) classify(label string) Result {
	key := strings.ToLower(strings.TrimSpace(label))
	if in, ok := n.labels[key]; ok {
		return Result{Intent: in, Label: label, Recognized: true}
	}
	return Result{Intent: n.fallback, Label: label}
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", fmt.Errorf("%w: %q is missing", ErrMalformedOutput, key)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrMalformedOutput, key)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: %q is empty", ErrMalformedOutput, key)
	}
	return s, nil
}

func optionalString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrMalformedOutput, key)
	}
	return s, nil
}

// optionalID принимает идентификатор строкой или числом; "null" и пустая строка означают отсутствие.
func optionalID(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", nil
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedOutput, key, err)
	}

	var id string
	switch t := v.(type) {
	case string:
		id = strings.TrimSpace(t)
	case json.Number:
		id = t.String()
	default:
		return "", fmt.Errorf("%w: %q has type %T", ErrMalformedOutput, key, v)
	}

	if id == "" || strings.EqualFold(id, "null") {
		return "", nil
	}
	return id, nil
}

func optionalBool(fields map[string]json.RawMessage, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return false, nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("%w: %q: %v", ErrMalformedOutput, key, err)
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a boolean", ErrMalformedOutput, key)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: %q has type %T", ErrMalformedOutput, key, v)
	}
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

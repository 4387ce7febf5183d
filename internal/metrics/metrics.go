// Package metrics содержит счётчики Prometheus сервиса ассистента.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics объединяет счётчики обработки сообщений.
type Metrics struct {
	Intents            *prometheus.CounterVec
	Actions            *prometheus.CounterVec
	ClassifierFailures *prometheus.CounterVec
	Escalations        *prometheus.CounterVec
}

// New создаёт счётчики и регистрирует их в reg. При reg == nil счётчики не регистрируются.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_intents_total",
			Help: "Classified messages by conversation mode and intent.",
		}, []string{"mode", "intent"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_actions_total",
			Help: "Actions performed by the router.",
		}, []string{"action"}),
		ClassifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_classifier_failures_total",
			Help: "Classifier failures by kind.",
		}, []string{"kind"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_escalations_total",
			Help: "Escalation attempts by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.Intents, m.Actions, m.ClassifierFailures, m.Escalations)
	}
	return m
}

// IntentClassified учитывает классифицированное сообщение.
func (m *Metrics) IntentClassified(mode, intent string) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(mode, intent).Inc()
}

// ActionPerformed учитывает выполненное действие.
func (m *Metrics) ActionPerformed(action string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(action).Inc()
}

// ClassifierFailed учитывает сбой классификатора: timeout, unavailable или malformed.
func (m *Metrics) ClassifierFailed(kind string) {
	if m == nil {
		return
	}
	m.ClassifierFailures.WithLabelValues(kind).Inc()
}

// EscalationFinished учитывает результат вызова оператора: ok, failed или dropped.
func (m *Metrics) EscalationFinished(result string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(result).Inc()
}

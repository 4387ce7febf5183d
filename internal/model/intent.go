package model

// Intent задаёт метку намерения пользователя из закрытого набора.
type Intent string

const (
	IntentOrderStatus   Intent = "order_status"
	IntentTrackOrder    Intent = "track_order"
	IntentCancelOrder   Intent = "cancel_order"
	IntentRefundRequest Intent = "refund_request"
	IntentSpeakToHuman  Intent = "speak_to_human"
	IntentConnectHuman  Intent = "connect_human"
	IntentGeneralQuery  Intent = "general_query"
	IntentChat          Intent = "chat"
	IntentMissingInfo   Intent = "missing_info"
	IntentUnknown       Intent = "unknown"
)

// Canonical сводит синонимичные метки разных схем к одной ветке маршрутизации.
func (i Intent) Canonical() Intent {
	switch i {
	case IntentTrackOrder:
		return IntentOrderStatus
	case IntentConnectHuman:
		return IntentSpeakToHuman
	case IntentChat:
		return IntentGeneralQuery
	default:
		return i
	}
}

// Action описывает побочный эффект, выполненный при обработке сообщения.
type Action string

const (
	ActionNone            Action = "none"
	ActionOrderCancelled  Action = "order_cancelled"
	ActionRefundRequested Action = "refund_requested"
	ActionEscalated       Action = "escalated"
)

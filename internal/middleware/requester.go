package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/order-assistant/internal/validation"
)

type contextKey string

const phoneKey contextKey = "requesterPhone"

// RequesterPhone нормализует параметр пути {phone} и кладёт номер в контекст запроса.
// Некорректный номер отклоняется с кодом 400.
func RequesterPhone(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		phone := validation.NormalizePhone(chi.URLParam(r, "phone"))
		if !validation.IsValidPhone(phone) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid phone number"})
			return
		}

		ctx := context.WithValue(r.Context(), phoneKey, phone)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PhoneFromContext извлекает номер пользователя из контекста запроса.
func PhoneFromContext(ctx context.Context) (string, bool) {
	phone, ok := ctx.Value(phoneKey).(string)
	return phone, ok && phone != ""
}

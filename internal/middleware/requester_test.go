package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequesterPhone(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantPhone  string
	}{
		{name: "plain digits", path: "/history/9876543210", wantStatus: http.StatusOK, wantPhone: "9876543210"},
		{name: "international", path: "/history/+1-555-010-9999", wantStatus: http.StatusOK, wantPhone: "+15550109999"},
		{name: "too short", path: "/history/12345", wantStatus: http.StatusBadRequest},
		{name: "letters", path: "/history/call-me", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			r := chi.NewRouter()
			r.With(RequesterPhone).Get("/history/{phone}", func(w http.ResponseWriter, r *http.Request) {
				phone, ok := PhoneFromContext(r.Context())
				if !ok {
					t.Fatalf("phone not in context")
				}
				got = phone
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got != tt.wantPhone {
				t.Fatalf("phone = %q, want %q", got, tt.wantPhone)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := Logger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/assistant/message", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Fatalf("status field = %v", fields["status"])
	}
	if fields["size"] != int64(len("short and stout")) {
		t.Fatalf("size field = %v", fields["size"])
	}
	if fields["method"] != http.MethodPost {
		t.Fatalf("method field = %v", fields["method"])
	}
}

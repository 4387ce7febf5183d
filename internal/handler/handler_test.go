package handler

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/order-assistant/internal/intent"
	"github.com/mmeshcher/order-assistant/internal/model"
	"github.com/mmeshcher/order-assistant/internal/repository"
	"github.com/mmeshcher/order-assistant/internal/service"
)

type stubService struct {
	outcome *service.Outcome
	err     error
	gotReq  service.Request

	turns      []model.ChatTurn
	historyErr error
	clearErr   error
	cleared    string
}

func (s *stubService) HandleMessage(ctx context.Context, req service.Request) (*service.Outcome, error) {
	s.gotReq = req
	return s.outcome, s.err
}

func (s *stubService) GetHistory(ctx context.Context, phone string) ([]model.ChatTurn, error) {
	return s.turns, s.historyErr
}

func (s *stubService) ClearHistory(ctx context.Context, phone string) error {
	s.cleared = phone
	return s.clearErr
}

func newTestHandler(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	return NewHandler(svc, logger, metrics).SetupRouter()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestMessage(t *testing.T) {
	svc := &stubService{outcome: &service.Outcome{
		Reply:   "Order 1001 has been cancelled.",
		Intent:  model.IntentCancelOrder,
		OrderID: "1001",
		Action:  model.ActionOrderCancelled,
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/assistant/message",
		`{"message":"cancel 1001","requesterPhone":"+91 98765 43210"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "Order 1001 has been cancelled.", body["response"])
	assert.Equal(t, "cancel_order", body["intent"])
	assert.Equal(t, "1001", body["orderId"])
	assert.Equal(t, string(model.ActionOrderCancelled), body["action"])
	assert.NotContains(t, body, "refundId")

	assert.Equal(t, intent.ModeChat, svc.gotReq.Mode)
	assert.Equal(t, "+919876543210", svc.gotReq.Phone)
	assert.Equal(t, "cancel 1001", svc.gotReq.Message)
}

func TestCall_UsesCallMode(t *testing.T) {
	svc := &stubService{outcome: &service.Outcome{Reply: "Hi!", Intent: model.IntentUnknown, Action: model.ActionNone}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/assistant/call", `{"message":"hello","requesterPhone":"9876543210"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, intent.ModeCall, svc.gotReq.Mode)
	assert.NotContains(t, decode(t, rec), "orderId")
}

func TestMessage_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{"message":`},
		{name: "empty message", body: `{"message":"  ","requesterPhone":"9876543210"}`},
		{name: "missing phone", body: `{"message":"hi"}`},
		{name: "invalid phone", body: `{"message":"hi","requesterPhone":"123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{}
			rec := do(t, newTestHandler(t, svc), http.MethodPost, "/assistant/message", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
			assert.Empty(t, svc.gotReq.Message)
		})
	}
}

func TestMessage_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid request", err: service.ErrInvalidRequest, wantStatus: http.StatusBadRequest},
		{name: "classifier unreachable", err: service.ErrClassifierUnreachable, wantStatus: http.StatusInternalServerError},
		{name: "store failure", err: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{err: tt.err}
			rec := do(t, newTestHandler(t, svc), http.MethodPost, "/assistant/message",
				`{"message":"hi","requesterPhone":"9876543210"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.Equal(t, "Internal Server Error", decode(t, rec)["error"])
			}
		})
	}
}

func TestQuery(t *testing.T) {
	svc := &stubService{outcome: &service.Outcome{
		Reply:  "Connecting you to a human agent now...",
		Intent: model.IntentSpeakToHuman,
		Action: model.ActionEscalated,
	}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/assistant/query",
		`{"query":"let me talk to a person","email":" mayank@example.com "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Connecting you to a human agent now...", body["talk"])
	assert.Equal(t, "speak_to_human", body["request"])
	assert.Len(t, body, 2)

	assert.Equal(t, intent.ModeSimple, svc.gotReq.Mode)
	assert.Equal(t, "mayank@example.com", svc.gotReq.Email)
}

func TestQuery_NeedsIdentity(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newTestHandler(t, svc), http.MethodPost, "/assistant/query", `{"query":"where is my order"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, newTestHandler(t, svc), http.MethodPost, "/assistant/query", `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHistory(t *testing.T) {
	at := time.Date(2025, 7, 10, 9, 30, 0, 0, time.UTC)
	svc := &stubService{turns: []model.ChatTurn{
		{Message: "where is 1001", Reply: "Your order 1001 (Phone) is currently shipped.", CreatedAt: at},
		{Message: "thanks", Reply: "You're welcome!", CreatedAt: at.Add(time.Minute)},
	}}

	rec := do(t, newTestHandler(t, svc), http.MethodGet, "/assistant/history/9876543210", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp historyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ChatHistory, 2)
	assert.Equal(t, "where is 1001", resp.ChatHistory[0].Message)
	assert.Equal(t, "2025-07-10T09:30:00Z", resp.ChatHistory[0].Timestamp)
	assert.Equal(t, "You're welcome!", resp.ChatHistory[1].Reply)
}

func TestGetHistory_EmptyIsArray(t *testing.T) {
	rec := do(t, newTestHandler(t, &stubService{}), http.MethodGet, "/assistant/history/9876543210", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chatHistory":[]}`, rec.Body.String())
}

func TestGetHistory_Errors(t *testing.T) {
	rec := do(t, newTestHandler(t, &stubService{historyErr: repository.ErrUserNotFound}),
		http.MethodGet, "/assistant/history/9876543210", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, newTestHandler(t, &stubService{historyErr: errors.New("boom")}),
		http.MethodGet, "/assistant/history/9876543210", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, newTestHandler(t, &stubService{}), http.MethodGet, "/assistant/history/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearHistory(t *testing.T) {
	svc := &stubService{}
	rec := do(t, newTestHandler(t, svc), http.MethodDelete, "/assistant/history/98765-43210", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Chat history cleared successfully"}`, rec.Body.String())
	assert.Equal(t, "9876543210", svc.cleared)

	rec = do(t, newTestHandler(t, &stubService{clearErr: repository.ErrUserNotFound}),
		http.MethodDelete, "/assistant/history/9876543210", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_Fallbacks(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/assistant/message", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestMetrics_CompressedOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	requests := prometheus.NewCounter(prometheus.CounterOpts{Name: "assistant_test_requests_total", Help: "test"})
	reg.MustRegister(requests)
	requests.Inc()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	h := NewHandler(&stubService{}, logger, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer zr.Close()
	body, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.Contains(t, string(body), "assistant_test_requests_total 1")
}

func TestAssistantRoutes_Compressed(t *testing.T) {
	svc := &stubService{outcome: &service.Outcome{Reply: "Hi!", Intent: model.IntentChat, Action: model.ActionNone}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/assistant/message",
		strings.NewReader(`{"message":"hello","requesterPhone":"9876543210"}`))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer zr.Close()
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":"Hi!","intent":"chat","action":"none"}`, string(body))
}

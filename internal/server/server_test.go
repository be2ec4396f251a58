package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehook/internal/app"
	"tradehook/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stubHandler struct {
	result  app.Result
	signals []domain.Signal
}

func (s *stubHandler) ProcessSignal(ctx context.Context, sig domain.Signal) app.Result {
	s.signals = append(s.signals, sig)
	return s.result
}

func newTestServer(t *testing.T, handler SignalHandler) *Server {
	t.Helper()
	srv, err := New(Config{
		ListenAddr:    ":0",
		WebhookSecret: "sekret",
		Handler:       handler,
		Logger:        &mockLogger{},
	})
	require.NoError(t, err)
	return srv
}

func post(t *testing.T, srv *Server, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	handler := &stubHandler{}
	srv := newTestServer(t, handler)

	for _, url := range []string{"/", "/?secret=wrong"} {
		rec := post(t, srv, url, "BUY BTC-USD")
		assert.Equal(t, http.StatusForbidden, rec.Code, "url %s", url)
	}
	assert.Empty(t, handler.signals, "unauthorized requests must never reach the core")
}

func TestWebhook_Ping(t *testing.T) {
	handler := &stubHandler{}
	srv := newTestServer(t, handler)

	rec := post(t, srv, "/?secret=sekret", "PING")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, handler.signals)
}

func TestWebhook_BadFormat(t *testing.T) {
	handler := &stubHandler{}
	srv := newTestServer(t, handler)

	for _, body := range []string{"", "BUY", "BUY BTCUSD", "HOLD BTC-USD"} {
		rec := post(t, srv, "/?secret=sekret", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Empty(t, handler.signals)
}

func TestWebhook_DispatchesSignal(t *testing.T) {
	handler := &stubHandler{result: app.Result{Status: app.StatusExecuted, Message: "BUY executed: BTC-USD - 0.001 @ 50000"}}
	srv := newTestServer(t, handler)

	rec := post(t, srv, "/?secret=sekret", "buy btc-usd\n")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BUY executed: BTC-USD - 0.001 @ 50000", rec.Body.String())

	require.Len(t, handler.signals, 1)
	assert.Equal(t, domain.Signal{Action: domain.Buy, Symbol: "BTC-USD"}, handler.signals[0])
}

func TestWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status app.Status
		want   int
	}{
		{name: "executed", status: app.StatusExecuted, want: http.StatusOK},
		{name: "already open", status: app.StatusAlreadyOpen, want: http.StatusOK},
		{name: "not open", status: app.StatusNotOpen, want: http.StatusOK},
		{name: "bad format", status: app.StatusBadFormat, want: http.StatusBadRequest},
		{name: "internal error", status: app.StatusInternalError, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &stubHandler{result: app.Result{Status: tt.status, Message: string(tt.status)}}
			srv := newTestServer(t, handler)

			rec := post(t, srv, "/?secret=sekret", "SELL ETH-USD")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWebhook_OnlyPostAccepted(t *testing.T) {
	srv := newTestServer(t, &stubHandler{})

	req := httptest.NewRequest(http.MethodGet, "/?secret=sekret", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package sender

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
)

func notification(t *testing.T) *domain.Notification {
	t.Helper()
	n, err := domain.NewNotification("N-1", "compliance", domain.NotificationTypeAlertEscalated, "aml.alert.escalated",
		"Alert escalated", "A-1 escalated", "HIGH", map[string]any{"alert_id": "A-1"}, time.Now())
	require.NoError(t, err)
	return n
}

func TestWebhookSend(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Send(context.Background(), notification(t)))
	assert.Equal(t, "*Alert escalated*\nA-1 escalated", got.Text)
	assert.Equal(t, "N-1", got.Notification.ID)
	assert.Equal(t, "A-1", got.Notification.Data["alert_id"])
}

func TestWebhookSendError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := s.Send(context.Background(), notification(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.EqualValues(t, 1, calls.Load())
}

package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/amlplatform/internal/notification/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	pending  []*domain.Notification
	marked   []string
	unknown  []string
	failMark bool
}

func (s *fakeStore) Pending(_ context.Context, group string, limit int) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.pending {
		if n.RecipientGroup == group && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkRead(_ context.Context, _ string, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark {
		return nil, errors.New("db down")
	}
	var updated []string
	for _, id := range ids {
		if !slices.Contains(s.unknown, id) {
			updated = append(updated, id)
		}
	}
	s.marked = append(s.marked, updated...)
	return updated, nil
}

func newNotification(t *testing.T, id, group string, typ domain.NotificationType, topic string) *domain.Notification {
	t.Helper()
	n, err := domain.NewNotification(id, group, typ, topic, "title "+id, "", "", nil, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return n
}

func startHub(t *testing.T, store *fakeStore) (*Hub, string) {
	t.Helper()
	hub := NewHub(store, "compliance", 10, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestPendingSentOnConnect(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 12; i++ {
		store.pending = append(store.pending, newNotification(t, fmt.Sprintf("N-%d", i), "compliance", domain.NotificationTypeAlertCreated, "aml.alert.created"))
	}
	_, url := startHub(t, store)
	conn := dial(t, url)

	for i := 0; i < 10; i++ {
		msg := read(t, conn)
		assert.Equal(t, TypeNotification, msg["type"])
		body, ok := msg["notification"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("N-%d", i), body["id"])
		assert.Equal(t, "ALERT_CREATED", body["notification_type"])
	}
}

func TestProtocol(t *testing.T) {
	store := &fakeStore{unknown: []string{"N-404"}}
	hub, url := startHub(t, store)
	conn := dial(t, url+"?group=mlro")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topics": []string{"aml.case.opened"}}))
	msg := read(t, conn)
	assert.Equal(t, TypeSubscriptionSuccess, msg["type"])
	assert.Equal(t, []any{"aml.case.opened"}, msg["topics"])

	assert.Equal(t, 1, hub.Push(newNotification(t, "N-1", "compliance", domain.NotificationTypeCaseOpened, "aml.case.opened")))
	assert.Equal(t, 0, hub.Push(newNotification(t, "N-2", "compliance", domain.NotificationTypeAlertCreated, "aml.alert.created")))
	assert.Equal(t, 1, hub.Push(newNotification(t, "N-3", "mlro", domain.NotificationTypeAlertCreated, "aml.alert.created")))

	msg = read(t, conn)
	assert.Equal(t, "N-1", msg["notification"].(map[string]any)["id"])
	msg = read(t, conn)
	assert.Equal(t, "N-3", msg["notification"].(map[string]any)["id"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "mark_read", "notification_ids": []string{"N-3", "N-404"}}))
	msg = read(t, conn)
	assert.Equal(t, TypeMarkedRead, msg["type"])
	assert.Equal(t, []any{"N-3"}, msg["notification_ids"])
	store.mu.Lock()
	assert.Equal(t, []string{"N-3"}, store.marked)
	store.mu.Unlock()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	msg = read(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, "Unsupported message type", msg["message"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg = read(t, conn)
	assert.Equal(t, TypeError, msg["type"])
}

func TestMarkReadFailure(t *testing.T) {
	store := &fakeStore{failMark: true}
	_, url := startHub(t, store)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "mark_read", "notification_ids": []string{"N-1"}}))
	msg := read(t, conn)
	assert.Equal(t, TypeError, msg["type"])
	assert.Equal(t, "Failed to mark notifications as read", msg["message"])
}

func TestUnregisterOnClose(t *testing.T) {
	hub, url := startHub(t, &fakeStore{})
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "topics": []string{}}))
	_ = read(t, conn)
	assert.Equal(t, 1, hub.Len())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

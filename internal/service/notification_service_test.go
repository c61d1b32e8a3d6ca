package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu       sync.Mutex
	failures int
	calls    int
	sent     []Notification
}

func (s *flakySink) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("sink unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *flakySink) snapshot() (int, []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]Notification(nil), s.sent...)
}

func notificationConfig(retries int) *config.NotificationConfig {
	return &config.NotificationConfig{Workers: 2, QueueSize: 8, MaxRetries: retries, RetryDelay: time.Millisecond}
}

func TestNotificationService_RetriesUntilDelivered(t *testing.T) {
	sink := &flakySink{failures: 2}
	svc := NewNotificationService(sink, notificationConfig(3))
	svc.Start(context.Background())

	require.True(t, svc.Enqueue(NewAssignmentNotification(&model.Assignment{ID: 5, CandidateID: 9})))
	svc.Stop()

	calls, sent := sink.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, sent, 1)
	assert.Equal(t, uint(5), sent[0].AssignmentID)
	assert.Equal(t, EventAssignmentCreated, sent[0].Event)
	assert.NotEmpty(t, sent[0].ID)
}

func TestNotificationService_GivesUpAfterMaxRetries(t *testing.T) {
	sink := &flakySink{failures: 100}
	svc := NewNotificationService(sink, notificationConfig(2))
	svc.Start(context.Background())

	svc.Enqueue(NewAssignmentNotification(&model.Assignment{ID: 1}))
	svc.Stop()

	calls, sent := sink.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestNotificationService_EnqueueNeverBlocks(t *testing.T) {
	sink := &flakySink{}
	svc := NewNotificationService(sink, &config.NotificationConfig{Workers: 1, QueueSize: 1})

	// 未启动 worker：第一条入队，第二条被丢弃
	assert.True(t, svc.Enqueue(Notification{AssignmentID: 1}))
	assert.False(t, svc.Enqueue(Notification{AssignmentID: 2}))

	svc.Stop()
	assert.False(t, svc.Enqueue(Notification{AssignmentID: 3}))
}

func TestWebhookSink(t *testing.T) {
	var hits int32
	var got Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.AssignmentID == 13 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	require.NoError(t, sink.Send(context.Background(), Notification{ID: "n-1", AssignmentID: 12}))
	assert.Equal(t, uint(12), got.AssignmentID)

	assert.Error(t, sink.Send(context.Background(), Notification{ID: "n-2", AssignmentID: 13}))

	sink.SetURL("")
	require.NoError(t, sink.Send(context.Background(), Notification{ID: "n-3"}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

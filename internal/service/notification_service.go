package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/musama5293/NPI-Portal-sub001/internal/config"
	"github.com/musama5293/NPI-Portal-sub001/internal/model"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	"go.uber.org/zap"
)

const EventAssignmentCreated = "assignment.created"

type Notification struct {
	ID             string    `json:"id"`
	Event          string    `json:"event"`
	AssignmentID   uint      `json:"assignmentId"`
	TestID         uint      `json:"testId"`
	CandidateID    uint      `json:"candidateId"`
	SupervisorID   *uint     `json:"supervisorId,omitempty"`
	IsFeedbackForm bool      `json:"isFeedbackForm"`
	ScheduledAt    time.Time `json:"scheduledAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

func NewAssignmentNotification(a *model.Assignment) Notification {
	return Notification{
		ID:             uuid.NewString(),
		Event:          EventAssignmentCreated,
		AssignmentID:   a.ID,
		TestID:         a.TestID,
		CandidateID:    a.CandidateID,
		SupervisorID:   a.SupervisorID,
		IsFeedbackForm: a.IsFeedbackForm,
		ScheduledAt:    a.ScheduledAt,
		ExpiresAt:      a.ExpiresAt,
		CreatedAt:      time.Now(),
	}
}

// NotificationSink 通知投递目标
type NotificationSink interface {
	Send(ctx context.Context, n Notification) error
}

// WebhookSink 以 JSON POST 投递；URL 为空时只记录日志
type WebhookSink struct {
	mu     sync.RWMutex
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) SetURL(url string) {
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
}

func (s *WebhookSink) Send(ctx context.Context, n Notification) error {
	s.mu.RLock()
	url := s.url
	s.mu.RUnlock()

	if url == "" {
		logger.Log.Info("Notification (no webhook configured)",
			zap.String("event", n.Event),
			zap.Uint("assignment_id", n.AssignmentID),
			zap.Uint("candidate_id", n.CandidateID))
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-ID", n.ID)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// NotificationService 后台 worker 池，失败按指数退避重试；Enqueue 永不阻塞调用方
type NotificationService struct {
	sink       NotificationSink
	queue      chan Notification
	workers    int
	maxRetries int
	retryDelay time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewNotificationService(sink NotificationSink, cfg *config.NotificationConfig) *NotificationService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	size := cfg.QueueSize
	if size < 1 {
		size = 64
	}
	return &NotificationService{
		sink:       sink,
		queue:      make(chan Notification, size),
		workers:    workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for n := range s.queue {
				s.deliver(ctx, n)
			}
		}()
	}
	logger.Log.Info("Notification workers started", zap.Int("workers", s.workers))
}

// Stop 关闭队列并等待已入队的通知处理完
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// Enqueue 队列已满或服务已关闭时丢弃并返回 false
func (s *NotificationService) Enqueue(n Notification) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		monitoring.NotificationsDispatched.WithLabelValues("dropped").Inc()
		return false
	}

	select {
	case s.queue <- n:
		return true
	default:
		monitoring.NotificationsDispatched.WithLabelValues("dropped").Inc()
		logger.Log.Warn("Notification queue full, dropping",
			zap.String("event", n.Event),
			zap.Uint("assignment_id", n.AssignmentID))
		return false
	}
}

func (s *NotificationService) deliver(ctx context.Context, n Notification) {
	delay := s.retryDelay
	for attempt := 0; ; attempt++ {
		err := s.sink.Send(ctx, n)
		if err == nil {
			monitoring.NotificationsDispatched.WithLabelValues("sent").Inc()
			return
		}

		if attempt >= s.maxRetries {
			monitoring.NotificationsDispatched.WithLabelValues("failed").Inc()
			logger.Log.Error("Notification delivery failed",
				zap.String("id", n.ID),
				zap.Uint("assignment_id", n.AssignmentID),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return
		}

		logger.Log.Warn("Notification delivery retry",
			zap.String("id", n.ID),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			monitoring.NotificationsDispatched.WithLabelValues("failed").Inc()
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

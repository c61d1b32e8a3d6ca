package service

import (
	"time"

	"github.com/musama5293/NPI-Portal-sub001/internal/repository"
	"github.com/musama5293/NPI-Portal-sub001/pkg/logger"
	"github.com/musama5293/NPI-Portal-sub001/pkg/monitoring"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiryService 定期把超过截止时间仍未完成的测评标记为 expired
type ExpiryService struct {
	AssignmentRepo *repository.AssignmentRepository
	Clock          func() time.Time

	cron *cron.Cron
}

func NewExpiryService(assignmentRepo *repository.AssignmentRepository) *ExpiryService {
	return &ExpiryService{
		AssignmentRepo: assignmentRepo,
		Clock:          time.Now,
	}
}

// Sweep 执行一次过期扫描，返回本次标记的数量
func (s *ExpiryService) Sweep() (int64, error) {
	n, err := s.AssignmentRepo.ExpireOverdue(s.Clock())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		monitoring.ExpiredAssignments.Add(float64(n))
		logger.Log.Info("Expired overdue assignments", zap.Int64("count", n))
	}
	return n, nil
}

// Start 按 cron 表达式调度扫描，例如 "@every 5m"
func (s *ExpiryService) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := s.Sweep(); err != nil {
			logger.Log.Error("Expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	logger.Log.Info("Expiry sweeper started", zap.String("schedule", schedule))
	return nil
}

func (s *ExpiryService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

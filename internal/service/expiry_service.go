package service

import (
	"assessment_backend/internal/util"
	"assessment_backend/pkg/logger"
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepBatch = 100

// ExpiryService periodically force-ends attempts whose deadline has passed.
type ExpiryService struct {
	Attempts *AttemptService
	cron     *cron.Cron
}

func NewExpiryService(attempts *AttemptService) *ExpiryService {
	return &ExpiryService{Attempts: attempts}
}

func (s *ExpiryService) Start(spec string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			logger.Log.Error("expiry sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	logger.Log.Info("expiry sweeper started", zap.String("spec", spec))
	return nil
}

func (s *ExpiryService) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep expires every attempt due at the current time and returns how many it ended.
func (s *ExpiryService) Sweep(ctx context.Context) (int, error) {
	now := s.Attempts.Clock()
	ids, err := s.Attempts.Deadlines.Due(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		err := s.Attempts.ExpireAttempt(ctx, id)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, util.ErrAttemptNotFound):
			_ = s.Attempts.Deadlines.Remove(ctx, id)
		case errors.Is(err, util.ErrDeadlineNotReached):
		default:
			logger.Log.Warn("failed to expire attempt", zap.String("attempt_id", id), zap.Error(err))
		}
	}
	if expired > 0 {
		logger.Log.Info("expired overdue attempts", zap.Int("count", expired))
	}
	return expired, nil
}

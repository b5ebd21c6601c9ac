package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/examportal/core"
)

// Sweeper periodically force-submits expired exam sessions.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	logger   core.Logger
}

func NewSweeper(svc *Service, conf *core.Config, logger core.Logger) *Sweeper {
	interval := conf.Exam.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info(fmt.Sprintf("sweeper started : every %v", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	swept, err := s.svc.SweepExpired(ctx)
	if err != nil {
		s.logger.Error(fmt.Sprintf("sweeping expired sessions: %v", err), err)
		return
	}
	if swept > 0 {
		s.logger.Info(fmt.Sprintf("sweeper : %d expired sessions submitted", swept))
	}
}

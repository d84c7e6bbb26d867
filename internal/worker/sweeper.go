package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"bawabamail/internal/domain"
	"bawabamail/internal/services"
)

const (
	DefaultSweepSpec       = "*/5 * * * *"
	DefaultSweepStaleAfter = 5 * time.Minute
	sweepBatchLimit        = 100
	sweepTimeout           = time.Minute
)

// Sweeper periodically re-publishes send_now campaigns whose hand-off never reached a worker.
type Sweeper struct {
	cron       *cron.Cron
	campaigns  domain.CampaignRepository
	publisher  domain.JobPublisher
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewSweeper schedules the sweep on spec (standard five-field cron syntax).
func NewSweeper(campaigns domain.CampaignRepository, publisher domain.JobPublisher, spec string, staleAfter time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if staleAfter <= 0 {
		staleAfter = DefaultSweepStaleAfter
	}
	s := &Sweeper{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		campaigns:  campaigns,
		publisher:  publisher,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "sweep failed", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", "stale_after", s.staleAfter.String())
}

// Stop prevents new sweeps and waits for a running one until ctx is done.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep publishes a job for every stale unclaimed campaign and returns how many were published.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.campaigns.ListUnclaimed(ctx, s.now().Add(-s.staleAfter), sweepBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list unclaimed campaigns: %w", err)
	}
	published := 0
	for _, id := range ids {
		job := services.NewDispatchJob(id)
		if err := s.publisher.Publish(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "failed to re-enqueue campaign", "campaign_id", id, "err", err)
			continue
		}
		published++
	}
	if published > 0 {
		s.logger.InfoContext(ctx, "re-enqueued stale campaigns", "count", published)
	}
	return published, nil
}

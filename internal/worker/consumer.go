// Package worker runs dispatch jobs handed off by the API.
package worker

import (
	"context"
	"log/slog"
	"time"

	"bawabamail/internal/domain"
)

// Consumer feeds queued dispatch jobs to the campaign dispatcher.
type Consumer struct {
	jobs       domain.JobConsumer
	dispatcher domain.CampaignDispatcher
	logger     *slog.Logger
}

func NewConsumer(jobs domain.JobConsumer, dispatcher domain.CampaignDispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{jobs: jobs, dispatcher: dispatcher, logger: logger}
}

// Run blocks until ctx is done or the queue closes.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "dispatch consumer started")
	return c.jobs.Consume(ctx, c.Handle)
}

// Handle claims the job's campaign. The send itself is returned as the job's run: once the
// claim holds, a redelivery is a no-op, so the queue can settle the delivery before sending.
// The run is detached from ctx so a shutdown never leaves a campaign half sent.
func (c *Consumer) Handle(ctx context.Context, job domain.DispatchJob) (domain.JobRun, error) {
	c.logger.InfoContext(ctx, "dispatch job received", "job_id", job.ID, "campaign_id", job.CampaignID)
	claimed, err := c.dispatcher.Claim(ctx, job.CampaignID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, nil
	}
	return func(ctx context.Context) {
		start := time.Now()
		c.dispatcher.Send(context.WithoutCancel(ctx), job.CampaignID)
		c.logger.InfoContext(ctx, "dispatch job done", "job_id", job.ID, "campaign_id", job.CampaignID, "duration_ms", time.Since(start).Milliseconds())
	}, nil
}

package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"bawabamail/internal/domain"
)

// Memory is an in-process queue used when no broker is configured. Jobs are lost on restart;
// the sweeper re-enqueues unclaimed campaigns.
type Memory struct {
	jobs   chan domain.DispatchJob
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// NewMemory returns a queue buffering up to size jobs.
func NewMemory(size int, logger *slog.Logger) *Memory {
	if size < 1 {
		size = 1
	}
	return &Memory{jobs: make(chan domain.DispatchJob, size), logger: logger}
}

// Publish enqueues job, blocking while the buffer is full.
func (m *Memory) Publish(ctx context.Context, job domain.DispatchJob) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return domain.ErrQueueClosed
	}
	select {
	case m.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs handler for each job until ctx is done or the queue is closed.
// Retryable failures are re-enqueued once.
func (m *Memory) Consume(ctx context.Context, handler domain.JobHandler) error {
	retried := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-m.jobs:
			if !ok {
				return domain.ErrQueueClosed
			}
			run, err := handler(ctx, job)
			if err == nil {
				delete(retried, job.ID)
				if run != nil {
					run(ctx)
				}
				continue
			}
			if errors.Is(err, ErrRetryable) && !retried[job.ID] {
				retried[job.ID] = true
				m.logger.WarnContext(ctx, "dispatch job failed, requeueing", "job_id", job.ID, "campaign_id", job.CampaignID, "err", err)
				go func() {
					if err := m.Publish(context.WithoutCancel(ctx), job); err != nil {
						m.logger.Error("requeue failed", "job_id", job.ID, "err", err)
					}
				}()
				continue
			}
			delete(retried, job.ID)
			m.logger.ErrorContext(ctx, "dispatch job failed", "job_id", job.ID, "campaign_id", job.CampaignID, "err", err)
		}
	}
}

// Close stops accepting jobs. Consumers drain what is buffered and then return.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.jobs)
	}
	return nil
}

// Package queue hands dispatch jobs from the API to the worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"bawabamail/internal/domain"
)

// ErrRetryable marks handler errors after which the job should be redelivered.
var ErrRetryable = domain.ErrRetryable

// pollInterval is how long Consume waits after finding the queue empty.
const pollInterval = time.Second

// RabbitMQ publishes and consumes dispatch jobs on a durable queue.
type RabbitMQ struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewRabbitMQ dials url and declares the durable queue.
func NewRabbitMQ(url, queue string, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return &RabbitMQ{conn: conn, ch: ch, queue: queue, logger: logger}, nil
}

// Publish sends job as a persistent JSON message.
func (q *RabbitMQ) Publish(ctx context.Context, job domain.DispatchJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	// publishes and gets share one channel
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

// Consume pulls one job at a time and passes it to handler until ctx is done or the channel
// closes. Jobs are fetched with basic.get rather than a push consumer, so no delivery sits
// prefetched and unacked while a long campaign is being sent.
func (q *RabbitMQ) Consume(ctx context.Context, handler domain.JobHandler) error {
	for ctx.Err() == nil {
		d, ok, err := q.get()
		if err != nil {
			if errors.Is(err, amqp.ErrClosed) {
				return domain.ErrQueueClosed
			}
			return fmt.Errorf("get job: %w", err)
		}
		if !ok {
			select {
			case <-ctx.Done():
			case <-time.After(pollInterval):
			}
			continue
		}
		handleDelivery(ctx, d, handler, q.logger)
	}
	return nil
}

func (q *RabbitMQ) get() (amqp.Delivery, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ch.Get(q.queue, false)
}

// handleDelivery acks accepted jobs before running them, drops malformed ones and requeues
// retryable failures. The run goes ahead even when the ack fails; the job's claim makes a
// redelivery harmless.
func handleDelivery(ctx context.Context, d amqp.Delivery, handler domain.JobHandler, logger *slog.Logger) {
	var job domain.DispatchJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.CampaignID == "" {
		logger.ErrorContext(ctx, "discarding malformed dispatch job", "message_id", d.MessageId, "err", err)
		if err := d.Nack(false, false); err != nil {
			logger.ErrorContext(ctx, "nack failed", "err", err)
		}
		return
	}

	run, err := handler(ctx, job)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			logger.ErrorContext(ctx, "ack failed", "job_id", job.ID, "err", err)
		}
		if run != nil {
			run(ctx)
		}
	case errors.Is(err, ErrRetryable) && !d.Redelivered:
		logger.WarnContext(ctx, "dispatch job failed, requeueing", "job_id", job.ID, "campaign_id", job.CampaignID, "err", err)
		if err := d.Nack(false, true); err != nil {
			logger.ErrorContext(ctx, "nack failed", "job_id", job.ID, "err", err)
		}
	default:
		logger.ErrorContext(ctx, "dispatch job failed", "job_id", job.ID, "campaign_id", job.CampaignID, "err", err)
		if err := d.Nack(false, false); err != nil {
			logger.ErrorContext(ctx, "nack failed", "job_id", job.ID, "err", err)
		}
	}
}

// Close closes the channel and the connection.
func (q *RabbitMQ) Close() error {
	return errors.Join(q.ch.Close(), q.conn.Close())
}

package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueClosed is returned when publishing to or consuming from a closed queue.
	ErrQueueClosed = errors.New("queue closed")
	// ErrRetryable marks job handler errors after which the job should be delivered once more.
	ErrRetryable = errors.New("retryable")
)

// DispatchResult is the outcome of sending a campaign to one recipient.
// Recipient is always redacted.
type DispatchResult struct {
	Success   bool
	Recipient string
	Error     string
}

// DispatchJob asks a worker to dispatch one campaign.
type DispatchJob struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaign_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobRun is the long part of a job. Queues call it after the delivery has been settled, so
// its duration is not bound by the broker's ack deadline.
type JobRun func(ctx context.Context)

// JobHandler accepts one dispatch job. A nil error settles the delivery, after which the
// returned run (if any) is executed. A retryable error leaves the job for redelivery.
type JobHandler func(ctx context.Context, job DispatchJob) (JobRun, error)

// JobPublisher hands a dispatch job off to the worker.
type JobPublisher interface {
	Publish(ctx context.Context, job DispatchJob) error
}

// JobConsumer delivers queued dispatch jobs to a handler until ctx is done.
type JobConsumer interface {
	Consume(ctx context.Context, handler JobHandler) error
}

// CampaignDispatcher runs the dispatch pipeline for one campaign.
type CampaignDispatcher interface {
	// Claim marks the campaign as being dispatched. It reports false when the campaign is not
	// in send_now or another worker already claimed it.
	Claim(ctx context.Context, campaignID string) (bool, error)
	// Send runs the pipeline for a claimed campaign and records the outcome.
	Send(ctx context.Context, campaignID string)
	// Dispatch claims and sends in one call.
	Dispatch(ctx context.Context, campaignID string) error
}

// RenderedEmail is the personalized content for one recipient.
type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

// ContentRenderer produces the personalized email for one recipient.
type ContentRenderer interface {
	Render(ctx context.Context, campaign *Campaign, recipientEmail, unsubscribeURL string) (*RenderedEmail, error)
}

// UnsubscribeURLBuilder builds and parses per-recipient unsubscribe links.
type UnsubscribeURLBuilder interface {
	Build(email string) (string, error)
	OneClickURL(email string) (string, error)
	Parse(token string) (email string, err error)
}

// RateLimiter decides whether a caller identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

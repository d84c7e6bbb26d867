package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"bawabamail/internal/domain"
)

// Dispatch defaults.
const (
	DefaultBatchSize     = 10
	DefaultBatchPause    = 2 * time.Second
	DefaultMaxRecipients = 10000
	DefaultSendTimeout   = 30 * time.Second

	// ClaimStaleAfter is how long a dispatch claim may go without a heartbeat before an operator
	// can release it. A running dispatch refreshes its claim after every batch.
	ClaimStaleAfter = 10 * time.Minute
)

const notConfiguredMessage = "Email service not configured - check email provider API key and domain verification"

// DispatcherConfig tunes batching. Zero values fall back to the defaults.
type DispatcherConfig struct {
	BatchSize     int
	BatchPause    time.Duration
	MaxRecipients int
	SendTimeout   time.Duration
	ReplyTo       string
	// Sleep waits between batches. Defaults to a timer that returns early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration)
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchPause < 0 {
		c.BatchPause = 0
	}
	if c.MaxRecipients < 1 {
		c.MaxRecipients = DefaultMaxRecipients
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

type dispatcher struct {
	campaigns   domain.CampaignRepository
	subscribers domain.SubscriberRepository
	renderer    domain.ContentRenderer
	urls        domain.UnsubscribeURLBuilder
	mailer      domain.Mailer
	cfg         DispatcherConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher returns the campaign dispatch pipeline: claim, load recipients, send in
// batches and record the outcome.
func NewDispatcher(
	campaigns domain.CampaignRepository,
	subscribers domain.SubscriberRepository,
	renderer domain.ContentRenderer,
	urls domain.UnsubscribeURLBuilder,
	mailer domain.Mailer,
	cfg DispatcherConfig,
	logger *slog.Logger,
) domain.CampaignDispatcher {
	return &dispatcher{
		campaigns:   campaigns,
		subscribers: subscribers,
		renderer:    renderer,
		urls:        urls,
		mailer:      mailer,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch sends the campaign to every active subscriber. Only a failed claim is returned as
// an error (wrapped with ErrRetryable); every later failure is recorded on the campaign.
func (d *dispatcher) Dispatch(ctx context.Context, campaignID string) error {
	claimed, err := d.Claim(ctx, campaignID)
	if err != nil || !claimed {
		return err
	}
	d.Send(ctx, campaignID)
	return nil
}

func (d *dispatcher) Claim(ctx context.Context, campaignID string) (bool, error) {
	claimed, err := d.campaigns.ClaimForDispatch(ctx, campaignID)
	if err != nil {
		return false, fmt.Errorf("claim campaign %s: %w: %w", campaignID, domain.ErrRetryable, err)
	}
	if !claimed {
		d.logger.InfoContext(ctx, "campaign not claimable, skipping", "campaign_id", campaignID)
	}
	return claimed, nil
}

func (d *dispatcher) Send(ctx context.Context, campaignID string) {
	if err := d.run(ctx, campaignID); err != nil {
		d.logger.ErrorContext(ctx, "campaign dispatch failed", "campaign_id", campaignID, "err", err)
		if perr := d.campaigns.RecordOutcome(ctx, campaignID, campaignErrorOutcome(err)); perr != nil {
			d.logger.ErrorContext(ctx, "failed to record campaign error", "campaign_id", campaignID, "err", perr)
		}
	}
}

func (d *dispatcher) run(ctx context.Context, campaignID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic during dispatch", "campaign_id", campaignID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("unexpected panic: %v", r)
		}
	}()

	campaign, err := d.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("load campaign: %w", err)
	}
	recipients, err := d.subscribers.ListActive(ctx, d.cfg.MaxRecipients)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	if len(recipients) == 0 {
		d.logger.WarnContext(ctx, "no active subscribers", "campaign_id", campaignID)
		d.record(ctx, campaignID, noSubscribersOutcome())
		return nil
	}

	d.logger.InfoContext(ctx, "dispatching campaign", "campaign_id", campaignID, "recipients", len(recipients))
	start := d.now()
	var acc outcomeAccumulator
	for i, batch := range partition(recipients, d.cfg.BatchSize) {
		if i > 0 {
			d.cfg.Sleep(ctx, d.cfg.BatchPause)
		}
		acc.add(d.sendBatch(ctx, campaign, batch))
		if err := d.campaigns.TouchClaim(ctx, campaignID); err != nil {
			d.logger.WarnContext(ctx, "failed to refresh dispatch claim", "campaign_id", campaignID, "err", err)
		}
	}

	outcome := acc.outcome(d.now())
	d.logger.InfoContext(ctx, "campaign dispatched",
		"campaign_id", campaignID,
		"status", outcome.Status,
		"sent", outcome.SentCount,
		"failed", outcome.FailedCount,
		"duration_ms", d.now().Sub(start).Milliseconds(),
	)
	d.record(ctx, campaignID, outcome)
	return nil
}

func (d *dispatcher) record(ctx context.Context, campaignID string, outcome domain.CampaignOutcome) {
	if err := d.campaigns.RecordOutcome(ctx, campaignID, outcome); err != nil {
		d.logger.ErrorContext(ctx, "failed to record campaign outcome", "campaign_id", campaignID, "status", outcome.Status, "err", err)
	}
}

// partition splits recipients into consecutive batches of at most size.
func partition(recipients []*domain.Subscriber, size int) [][]*domain.Subscriber {
	batches := make([][]*domain.Subscriber, 0, (len(recipients)+size-1)/size)
	for start := 0; start < len(recipients); start += size {
		end := min(start+size, len(recipients))
		batches = append(batches, recipients[start:end])
	}
	return batches
}

// sendBatch sends to every recipient concurrently and waits for all of them.
// results[i] belongs to batch[i].
func (d *dispatcher) sendBatch(ctx context.Context, campaign *domain.Campaign, batch []*domain.Subscriber) []domain.DispatchResult {
	results := make([]domain.DispatchResult, len(batch))
	var wg sync.WaitGroup
	for i, sub := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.sendOne(ctx, campaign, sub.Email)
		}()
	}
	wg.Wait()
	return results
}

func (d *dispatcher) sendOne(ctx context.Context, campaign *domain.Campaign, email string) (res domain.DispatchResult) {
	res.Recipient = RedactEmail(email)
	fail := func(msg string) domain.DispatchResult {
		res.Error = scrub(msg, email)
		d.logger.WarnContext(ctx, "send failed", "campaign_id", campaign.ID, "recipient", res.Recipient, "err", res.Error)
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res = fail(fmt.Sprintf("unexpected panic: %v", r))
		}
	}()

	unsubscribeURL, err := d.urls.Build(email)
	if err != nil {
		return fail("Unsubscribe URL generation failed: " + err.Error())
	}
	oneClickURL, err := d.urls.OneClickURL(email)
	if err != nil {
		return fail("Unsubscribe URL generation failed: " + err.Error())
	}

	rendered, err := d.renderer.Render(ctx, campaign, email, unsubscribeURL)
	if err != nil {
		return fail(err.Error())
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	receipt, err := d.mailer.Send(sendCtx, &domain.OutboundEmail{
		To:      email,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		ReplyTo: d.cfg.ReplyTo,
		Headers: d.unsubscribeHeaders(oneClickURL),
	})
	switch {
	case errors.Is(err, domain.ErrEmailNotConfigured), err == nil && receipt == nil:
		return fail(notConfiguredMessage)
	case err != nil:
		return fail(err.Error())
	}
	res.Success = true
	return res
}

// unsubscribeHeaders returns the List-Unsubscribe headers for one-click unsubscribe.
func (d *dispatcher) unsubscribeHeaders(oneClickURL string) map[string]string {
	value := "<" + oneClickURL + ">"
	if d.cfg.ReplyTo != "" {
		value += ", <mailto:" + d.cfg.ReplyTo + "?subject=unsubscribe>"
	}
	return map[string]string{
		"List-Unsubscribe":      value,
		"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
	}
}

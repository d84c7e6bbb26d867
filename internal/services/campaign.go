package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bawabamail/internal/domain"
)

// NewDispatchJob returns a job asking for campaignID to be dispatched.
func NewDispatchJob(campaignID string) domain.DispatchJob {
	return domain.DispatchJob{ID: uuid.NewString(), CampaignID: campaignID, EnqueuedAt: time.Now().UTC()}
}

type campaignService struct {
	repo      domain.CampaignRepository
	publisher domain.JobPublisher
	renderer  domain.ContentRenderer
	urls      domain.UnsubscribeURLBuilder
	logger    *slog.Logger
	now       func() time.Time
}

// NewCampaignService returns the operator-facing campaign service. Writes that move a campaign
// into send_now publish a dispatch job.
func NewCampaignService(
	repo domain.CampaignRepository,
	publisher domain.JobPublisher,
	renderer domain.ContentRenderer,
	urls domain.UnsubscribeURLBuilder,
	logger *slog.Logger,
) domain.CampaignService {
	return &campaignService{
		repo:      repo,
		publisher: publisher,
		renderer:  renderer,
		urls:      urls,
		logger:    logger,
		now:       time.Now,
	}
}

func validateCampaign(c *domain.Campaign) error {
	if c.Subject.IsEmpty() {
		return fmt.Errorf("%w: subject is required", domain.ErrInvalidInput)
	}
	if c.Body.IsEmpty() {
		return fmt.Errorf("%w: body is required", domain.ErrInvalidInput)
	}
	if !c.Status.Editable() {
		return fmt.Errorf("%w: status must be draft or send_now", domain.ErrInvalidStatusTransition)
	}
	return nil
}

func (s *campaignService) Create(ctx context.Context, input domain.CampaignInput) (*domain.Campaign, error) {
	now := s.now().UTC()
	c := &domain.Campaign{
		Subject:   input.Subject,
		Body:      input.Body,
		Status:    input.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Status == "" {
		c.Status = domain.CampaignStatusSendNow
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	s.afterWrite(ctx, domain.WriteOperationCreate, nil, c)
	return c, nil
}

func (s *campaignService) Update(ctx context.Context, id string, patch domain.CampaignPatch) (*domain.Campaign, error) {
	previous, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous.Status.Terminal() {
		return nil, domain.ErrCampaignLocked
	}

	next := *previous
	if patch.Subject != nil {
		next.Subject = *patch.Subject
	}
	if patch.Body != nil {
		next.Body = *patch.Body
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if err := validateCampaign(&next); err != nil {
		return nil, err
	}
	if err := s.releaseClaim(ctx, previous, &next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, &next); err != nil {
		if errors.Is(err, domain.ErrCampaignLocked) || errors.Is(err, domain.ErrCampaignNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update campaign: %w", err)
	}
	s.afterWrite(ctx, domain.WriteOperationUpdate, previous, &next)
	return &next, nil
}

// releaseClaim frees the dispatch claim of a send_now campaign moved back to draft so a later
// send_now can dispatch it again. A claim that still has a recent heartbeat belongs to a
// running dispatch and blocks the change.
func (s *campaignService) releaseClaim(ctx context.Context, previous, next *domain.Campaign) error {
	if previous.DispatchStartedAt == nil || previous.Status != domain.CampaignStatusSendNow || next.Status != domain.CampaignStatusDraft {
		return nil
	}
	released, err := s.repo.ReleaseStaleClaim(ctx, previous.ID, s.now().Add(-ClaimStaleAfter))
	if err != nil {
		return fmt.Errorf("failed to release dispatch claim: %w", err)
	}
	if !released {
		return fmt.Errorf("%w: campaign is being dispatched", domain.ErrCampaignLocked)
	}
	s.logger.InfoContext(ctx, "released stale dispatch claim", "campaign_id", previous.ID, "claimed_at", previous.DispatchStartedAt)
	next.DispatchStartedAt = nil
	return nil
}

// afterWrite runs the trigger detector and hands the campaign to the worker when it fires.
// Publish failures leave the campaign in send_now for the sweeper to pick up.
func (s *campaignService) afterWrite(ctx context.Context, op domain.WriteOperation, previous, next *domain.Campaign) {
	if !ShouldDispatch(op, previous, next) {
		return
	}
	job := NewDispatchJob(next.ID)
	if err := s.publisher.Publish(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue campaign dispatch", "campaign_id", next.ID, "job_id", job.ID, "err", err)
		return
	}
	s.logger.InfoContext(ctx, "campaign dispatch enqueued", "campaign_id", next.ID, "job_id", job.ID, "operation", op)
}

func (s *campaignService) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *campaignService) List(ctx context.Context, status domain.CampaignStatus, params domain.PaginationParams) ([]*domain.Campaign, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	campaigns, total, err := s.repo.List(ctx, status, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, total, nil
}

func (s *campaignService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Duplicate copies subject and body into a new draft. It is how operators resend a campaign
// that already reached sent or failed.
func (s *campaignService) Duplicate(ctx context.Context, id string) (*domain.Campaign, error) {
	source, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, domain.CampaignInput{
		Subject: source.Subject,
		Body:    source.Body,
		Status:  domain.CampaignStatusDraft,
	})
}

// Preview renders the campaign for one address without sending it.
func (s *campaignService) Preview(ctx context.Context, id, email, locale string) (*domain.CampaignPreview, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	unsubscribeURL, err := s.urls.Build(email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEmail, err)
	}
	if locale != "" {
		ctx = WithLocale(ctx, locale)
	}
	rendered, err := s.renderer.Render(ctx, c, email, unsubscribeURL)
	if err != nil {
		return nil, fmt.Errorf("failed to render preview: %w", err)
	}
	return &domain.CampaignPreview{Subject: rendered.Subject, HTML: rendered.HTML, Text: rendered.Text}, nil
}

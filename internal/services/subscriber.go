package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/badoux/checkmail"

	"bawabamail/internal/domain"
)

type subscriberService struct {
	repo   domain.SubscriberRepository
	urls   domain.UnsubscribeURLBuilder
	email  domain.EmailService
	site   domain.SiteInfo
	logger *slog.Logger
	now    func() time.Time
}

// NewSubscriberService returns the newsletter subscription service. emailService may be nil,
// in which case no welcome message is sent.
func NewSubscriberService(
	repo domain.SubscriberRepository,
	urls domain.UnsubscribeURLBuilder,
	emailService domain.EmailService,
	site domain.SiteInfo,
	logger *slog.Logger,
) domain.SubscriberService {
	return &subscriberService{
		repo:   repo,
		urls:   urls,
		email:  emailService,
		site:   site,
		logger: logger,
		now:    time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe creates an active subscriber, or reactivates one that unsubscribed earlier.
func (s *subscriberService) Subscribe(ctx context.Context, input domain.SubscribeInput) (*domain.Subscriber, error) {
	email := normalizeEmail(input.Email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	now := s.now().UTC()

	sub, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil && sub.Status == domain.SubscriberStatusActive:
		return nil, domain.ErrAlreadySubscribed
	case err == nil:
		if err := s.repo.UpdateStatus(ctx, sub.ID, domain.SubscriberStatusActive, now); err != nil {
			return nil, fmt.Errorf("failed to reactivate subscriber: %w", err)
		}
		sub.Status = domain.SubscriberStatusActive
		sub.SubscribedAt = now
		sub.UnsubscribedAt = nil
		sub.UpdatedAt = now
	case errors.Is(err, domain.ErrSubscriberNotFound):
		sub = &domain.Subscriber{
			Email:        email,
			FirstName:    strings.TrimSpace(input.FirstName),
			LastName:     strings.TrimSpace(input.LastName),
			Source:       strings.TrimSpace(input.Source),
			Status:       domain.SubscriberStatusActive,
			SubscribedAt: now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, sub); err != nil {
			if errors.Is(err, domain.ErrAlreadySubscribed) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to create subscriber: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up subscriber: %w", err)
	}

	s.sendWelcome(ctx, sub)
	return sub, nil
}

// sendWelcome never fails the subscription; problems are only logged.
func (s *subscriberService) sendWelcome(ctx context.Context, sub *domain.Subscriber) {
	if s.email == nil {
		return
	}
	unsubscribeURL, err := s.urls.Build(sub.Email)
	if err != nil {
		s.logger.WarnContext(ctx, "welcome email skipped", "subscriber_id", sub.ID, "err", err)
		return
	}
	err = s.email.SendWelcomeMessage(ctx, &domain.WelcomeMessageEmailData{
		Email:          sub.Email,
		FirstName:      sub.FirstName,
		UnsubscribeURL: unsubscribeURL,
		Site:           s.site,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "welcome email failed", "subscriber_id", sub.ID, "err", scrub(err.Error(), sub.Email))
	}
}

// Unsubscribe marks the address as unsubscribed. Unsubscribing twice is not an error.
func (s *subscriberService) Unsubscribe(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := checkmail.ValidateFormat(email); err != nil {
		return domain.ErrInvalidEmail
	}
	sub, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if sub.Status == domain.SubscriberStatusUnsubscribed {
		return nil
	}
	if err := s.repo.UpdateStatus(ctx, sub.ID, domain.SubscriberStatusUnsubscribed, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	s.logger.InfoContext(ctx, "subscriber unsubscribed", "subscriber_id", sub.ID)
	return nil
}

// UnsubscribeByToken unsubscribes the address carried by a signed unsubscribe token.
func (s *subscriberService) UnsubscribeByToken(ctx context.Context, token string) error {
	email, err := s.urls.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	return s.Unsubscribe(ctx, email)
}

func (s *subscriberService) List(ctx context.Context, status domain.SubscriberStatus, params domain.PaginationParams) ([]*domain.Subscriber, int, error) {
	if status != "" && status != domain.SubscriberStatusActive && status != domain.SubscriberStatusUnsubscribed {
		return nil, 0, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, status)
	}
	subs, total, err := s.repo.List(ctx, status, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, total, nil
}

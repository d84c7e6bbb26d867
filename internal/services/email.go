package services

import (
	"context"
	"fmt"
	"log/slog"

	"bawabamail/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	replyTo  string
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, replyTo string, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, replyTo: replyTo, logger: logger}
}

// SendWelcomeMessage sends a welcome email using the "welcome" template and the given data.
func (s *emailService) SendWelcomeMessage(ctx context.Context, data *domain.WelcomeMessageEmailData) error {
	if data == nil {
		return fmt.Errorf("welcome message data is nil")
	}
	subject, htmlBody, textBody, err := s.renderer.Render("welcome", data)
	if err != nil {
		return fmt.Errorf("failed to render welcome template: %w", err)
	}
	receipt, err := s.mailer.Send(ctx, &domain.OutboundEmail{
		To:      data.Email,
		Subject: subject,
		HTML:    htmlBody,
		Text:    textBody,
		ReplyTo: s.replyTo,
	})
	if err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	if receipt == nil {
		return domain.ErrEmailNotConfigured
	}
	s.logger.InfoContext(ctx, "welcome email sent", "recipient", RedactEmail(data.Email), "provider", receipt.Provider, "message_id", receipt.MessageID)
	return nil
}

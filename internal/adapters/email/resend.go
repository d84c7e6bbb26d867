package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"bawabamail/internal/domain"
)

// resendAPI is the subset of the Resend emails service used here.
type resendAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type resendMailer struct {
	emails resendAPI
	from   sender
}

func (r *resendMailer) Send(ctx context.Context, email *domain.OutboundEmail) (*domain.SendReceipt, error) {
	req := &resend.SendEmailRequest{
		From:    r.from.String(),
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Headers: email.Headers,
	}
	resp, err := r.emails.SendWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to send email via Resend: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return nil, nil
	}
	return &domain.SendReceipt{Provider: ProviderResend, MessageID: resp.Id}, nil
}

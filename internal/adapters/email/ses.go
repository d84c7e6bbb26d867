package email

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"bawabamail/internal/domain"
)

// sesAPI is the subset of the SES client used to send raw messages.
type sesAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// sesMailer sends raw MIME so that List-Unsubscribe headers survive.
type sesMailer struct {
	client sesAPI
	from   sender
}

func (s *sesMailer) Send(ctx context.Context, email *domain.OutboundEmail) (*domain.SendReceipt, error) {
	raw, _, err := rawMessage(s.from, email)
	if err != nil {
		return nil, err
	}
	input := &ses.SendRawEmailInput{
		Source:       aws.String(s.from.String()),
		Destinations: []string{email.To},
		RawMessage:   &types.RawMessage{Data: raw},
	}
	result, err := s.client.SendRawEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to send email via SES: %w", err)
	}
	return &domain.SendReceipt{Provider: ProviderSES, MessageID: aws.ToString(result.MessageId)}, nil
}

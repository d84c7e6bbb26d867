package email

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-gomail/gomail"

	"bawabamail/internal/domain"
)

func smtpDialer(smtpURL, user, pass string) (*gomail.Dialer, error) {
	surl, err := url.Parse(smtpURL)
	if err != nil {
		return nil, fmt.Errorf("parse smtp url: %w", err)
	}
	if surl.Scheme != "smtp" && surl.Scheme != "smtps" {
		return nil, fmt.Errorf("unsupported smtp scheme %q", surl.Scheme)
	}

	var port int
	if i, err := strconv.Atoi(surl.Port()); err == nil {
		port = i
	} else if surl.Scheme == "smtp" {
		port = 25
	} else {
		port = 465
	}

	d := gomail.NewDialer(surl.Hostname(), port, user, pass)
	d.SSL = surl.Scheme == "smtps"
	return d, nil
}

// messageSender abstracts gomail.Dialer for tests.
type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpMailer struct {
	dialer messageSender
	from   sender
}

// Send opens one SMTP session per message. gomail has no context support, so ctx is only
// checked before dialing.
func (s *smtpMailer) Send(ctx context.Context, email *domain.OutboundEmail) (*domain.SendReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, id := buildMessage(s.from, email)
	if err := s.dialer.DialAndSend(m); err != nil {
		return nil, fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return &domain.SendReceipt{Provider: ProviderSMTP, MessageID: id}, nil
}

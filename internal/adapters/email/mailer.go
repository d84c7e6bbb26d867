package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/resend/resend-go/v2"

	"bawabamail/internal/domain"
)

// Provider names accepted by NewMailer.
const (
	ProviderSES    = "ses"
	ProviderSMTP   = "smtp"
	ProviderResend = "resend"
	ProviderNoop   = "noop"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// SMTPConfig holds configuration for an SMTP relay. URL is smtp://host:port or smtps://host:port.
type SMTPConfig struct {
	URL      string
	Username string
	Password string
}

// ResendConfig holds configuration for the Resend API.
type ResendConfig struct {
	APIKey string
}

// MailerConfig holds configuration for creating a mailer.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
	SMTP        SMTPConfig
	Resend      ResendConfig
}

// NewMailer creates a mailer from config. A provider with missing credentials, "noop" or an
// unknown name yields a mailer that reports itself as not configured on every send.
func NewMailer(config MailerConfig, logger *slog.Logger) (domain.Mailer, error) {
	if config.FromAddress == "" && config.Provider != ProviderNoop {
		return nil, fmt.Errorf("mailer: from address is required for provider %q", config.Provider)
	}
	from := sender{address: config.FromAddress, name: config.FromName}

	switch config.Provider {
	case ProviderSES:
		sesConfig := config.SES
		if sesConfig.AccessKeyID == "" || sesConfig.SecretAccessKey == "" {
			logger.Warn("SES credentials missing, emails will not be sent", "provider", ProviderSES)
			return &noopMailer{logger: logger}, nil
		}
		if sesConfig.InsecureSkipVerify {
			logger.Warn("TLS certificate verification is disabled for SES. Use only in development.")
		}
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: sesConfig.InsecureSkipVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
		awsCfg := aws.Config{
			Region: sesConfig.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					sesConfig.AccessKeyID,
					sesConfig.SecretAccessKey,
					"",
				),
			),
			HTTPClient: httpClient,
		}
		return &sesMailer{client: ses.NewFromConfig(awsCfg), from: from}, nil
	case ProviderSMTP:
		if config.SMTP.URL == "" {
			logger.Warn("SMTP url missing, emails will not be sent", "provider", ProviderSMTP)
			return &noopMailer{logger: logger}, nil
		}
		dialer, err := smtpDialer(config.SMTP.URL, config.SMTP.Username, config.SMTP.Password)
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		return &smtpMailer{dialer: dialer, from: from}, nil
	case ProviderResend:
		if config.Resend.APIKey == "" {
			logger.Warn("Resend API key missing, emails will not be sent", "provider", ProviderResend)
			return &noopMailer{logger: logger}, nil
		}
		client := resend.NewClient(config.Resend.APIKey)
		return &resendMailer{emails: client.Emails, from: from}, nil
	case ProviderNoop:
		return &noopMailer{logger: logger}, nil
	default:
		logger.Warn("unknown email provider, using noop", "provider", config.Provider)
		return &noopMailer{logger: logger}, nil
	}
}

type sender struct {
	address string
	name    string
}

func (s sender) String() string {
	if s.name == "" {
		return s.address
	}
	return fmt.Sprintf("%s <%s>", s.name, s.address)
}

type noopMailer struct {
	logger *slog.Logger
}

// Send returns no receipt: callers treat that as "not configured".
func (n *noopMailer) Send(_ context.Context, email *domain.OutboundEmail) (*domain.SendReceipt, error) {
	n.logger.Debug("email would be sent (noop)", "subject", email.Subject)
	return nil, nil
}

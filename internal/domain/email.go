package domain

import (
	"context"
	"errors"
	"html/template"
)

// ErrEmailNotConfigured is the per-recipient failure when the transport returns no receipt.
var ErrEmailNotConfigured = errors.New("email service not configured - check email provider API key and domain verification")

// OutboundEmail is one message handed to the email transport.
type OutboundEmail struct {
	To      string
	Subject string
	HTML    string
	Text    string
	ReplyTo string
	Headers map[string]string
}

// SendReceipt confirms the provider accepted a message.
type SendReceipt struct {
	Provider  string
	MessageID string
}

// Mailer defines the contract for sending emails (infrastructure port).
// A nil receipt with a nil error means the transport is not configured.
type Mailer interface {
	Send(ctx context.Context, email *OutboundEmail) (*SendReceipt, error)
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// SiteInfo carries the branding and contact details shown in every email.
type SiteInfo struct {
	Name           string
	Tagline        string
	URL            string
	LogoURL        string
	PreferencesURL string
	ContactEmail   string
	Address        string
	Phone          string
}

// CampaignEmailData holds data for the campaign layout templates.
type CampaignEmailData struct {
	Subject        string
	ContentHTML    template.HTML
	ContentText    string
	RecipientEmail string
	UnsubscribeURL string
	Site           SiteInfo
	Year           int
}

// WelcomeMessageEmailData holds data for the welcome email.
type WelcomeMessageEmailData struct {
	Email          string
	FirstName      string
	UnsubscribeURL string
	Site           SiteInfo
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	SendWelcomeMessage(ctx context.Context, data *WelcomeMessageEmailData) error
}

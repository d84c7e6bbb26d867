package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"bawabamail/internal/domain"
	"bawabamail/internal/richtext"
)

// Placeholder content used when the campaign body cannot be turned into HTML.
const (
	contentUnavailableMessage = "Content could not be processed"
	contentEmptyMessage       = "No content available"
)

type localeKey struct{}

// WithLocale returns a context whose renders resolve localized subjects and bodies for locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

func localeFrom(ctx context.Context) string {
	if l, ok := ctx.Value(localeKey{}).(string); ok && l != "" {
		return l
	}
	return domain.DefaultLocale
}

type contentRenderer struct {
	templates domain.EmailTemplateRenderer
	site      domain.SiteInfo
	logger    *slog.Logger
	now       func() time.Time
}

// NewContentRenderer returns a ContentRenderer that wraps campaign bodies in the "campaign" template.
func NewContentRenderer(templates domain.EmailTemplateRenderer, site domain.SiteInfo, logger *slog.Logger) domain.ContentRenderer {
	return &contentRenderer{templates: templates, site: site, logger: logger, now: time.Now}
}

// Render builds the email for one recipient. Body conversion failures degrade to a placeholder
// paragraph; only template failures are returned.
func (r *contentRenderer) Render(ctx context.Context, campaign *domain.Campaign, recipientEmail, unsubscribeURL string) (*domain.RenderedEmail, error) {
	if campaign == nil {
		return nil, errors.New("campaign is nil")
	}
	locale := localeFrom(ctx)
	email := strings.ToLower(strings.TrimSpace(recipientEmail))

	contentHTML, contentText := r.renderBody(ctx, campaign, locale)

	data := &domain.CampaignEmailData{
		Subject:        campaign.Subject.Resolve(locale),
		ContentHTML:    template.HTML(contentHTML),
		ContentText:    contentText,
		RecipientEmail: email,
		UnsubscribeURL: unsubscribeURL,
		Site:           r.site,
		Year:           r.now().Year(),
	}
	subject, htmlBody, textBody, err := r.templates.Render("campaign", data)
	if err != nil {
		return nil, fmt.Errorf("render campaign template: %w", err)
	}
	return &domain.RenderedEmail{Subject: subject, HTML: htmlBody, Text: textBody}, nil
}

// renderBody returns the sanitized HTML content region and the plain-text body. Both fall back
// to the same placeholder message.
func (r *contentRenderer) renderBody(ctx context.Context, campaign *domain.Campaign, locale string) (string, string) {
	doc, err := richtext.FromContent(campaign.Body, locale)
	if errors.Is(err, richtext.ErrNoContent) {
		return richtext.PlaceholderParagraph(contentEmptyMessage), contentEmptyMessage
	}
	if err != nil {
		r.logger.WarnContext(ctx, "campaign body could not be parsed", "campaign_id", campaign.ID, "err", err)
		return richtext.PlaceholderParagraph(contentUnavailableMessage), contentUnavailableMessage
	}

	text := richtext.ToText(doc)
	if strings.TrimSpace(text) == "" {
		text = contentEmptyMessage
	}
	raw, err := richtext.ToHTML(doc)
	if err != nil {
		r.logger.WarnContext(ctx, "campaign body could not be converted", "campaign_id", campaign.ID, "err", err)
		return richtext.PlaceholderParagraph(contentUnavailableMessage), text
	}
	styled, err := richtext.ApplyEmailStyles(raw)
	if err != nil {
		r.logger.WarnContext(ctx, "campaign body could not be styled", "campaign_id", campaign.ID, "err", err)
		return richtext.PlaceholderParagraph(contentUnavailableMessage), text
	}
	return richtext.Sanitize(styled), text
}

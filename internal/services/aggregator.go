package services

import (
	"fmt"
	"strings"
	"time"

	"bawabamail/internal/domain"
)

const redactedEmail = "[REDACTED]"

// RedactEmail keeps the first two characters of the local part and masks the rest of it.
// Input that does not look like an address is fully redacted.
func RedactEmail(email string) string {
	local, host, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || local == "" || host == "" || strings.Contains(host, "@") {
		return redactedEmail
	}
	var b strings.Builder
	n := 0
	for _, r := range local {
		if n < 2 {
			b.WriteRune(r)
		} else {
			b.WriteByte('*')
		}
		n++
	}
	b.WriteByte('@')
	b.WriteString(host)
	return b.String()
}

// scrub removes raw occurrences of email from a transport error message.
func scrub(msg, email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return msg
	}
	redacted := RedactEmail(email)
	msg = strings.ReplaceAll(msg, email, redacted)
	if lower := strings.ToLower(email); lower != email {
		msg = strings.ReplaceAll(msg, lower, redacted)
	}
	return msg
}

// outcomeAccumulator folds per-batch dispatch results into campaign totals.
type outcomeAccumulator struct {
	sent   int
	failed int
	lines  []string
}

func (a *outcomeAccumulator) add(results []domain.DispatchResult) {
	for _, res := range results {
		if res.Success {
			a.sent++
			continue
		}
		a.failed++
		a.lines = append(a.lines, fmt.Sprintf("Failed to send to %s: %s", res.Recipient, res.Error))
	}
}

// outcome returns the terminal campaign state: sent only when nothing failed.
func (a *outcomeAccumulator) outcome(now time.Time) domain.CampaignOutcome {
	o := domain.CampaignOutcome{
		Status:      domain.CampaignStatusSent,
		SentAt:      &now,
		SentCount:   a.sent,
		FailedCount: a.failed,
	}
	if a.failed > 0 {
		o.Status = domain.CampaignStatusFailed
	}
	if len(a.lines) > 0 {
		log := strings.Join(a.lines, "\n")
		o.ErrorLog = &log
	}
	return o
}

func noSubscribersOutcome() domain.CampaignOutcome {
	msg := "No active subscribers found"
	return domain.CampaignOutcome{Status: domain.CampaignStatusFailed, ErrorLog: &msg}
}

func campaignErrorOutcome(err error) domain.CampaignOutcome {
	msg := "Campaign error: " + err.Error()
	return domain.CampaignOutcome{Status: domain.CampaignStatusFailed, ErrorLog: &msg}
}

package email

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gomail/gomail"
	"github.com/google/uuid"

	"bawabamail/internal/domain"
)

const xMailer = "bawabamail/1.0"

// buildMessage composes a MIME message with a text part and an HTML alternative.
// It returns the message and its Message-ID.
func buildMessage(from sender, email *domain.OutboundEmail) (*gomail.Message, string) {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from.address))

	m.SetAddressHeader("From", from.address, from.name)
	m.SetHeader("To", email.To)
	m.SetHeader("Subject", email.Subject)
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("X-Mailer", xMailer)
	if email.ReplyTo != "" {
		m.SetHeader("Reply-To", email.ReplyTo)
	}
	keys := make([]string, 0, len(email.Headers))
	for k := range email.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m.SetHeader(k, email.Headers[k])
	}

	switch {
	case email.Text != "" && email.HTML != "":
		m.SetBody("text/plain", email.Text)
		m.AddAlternative("text/html", email.HTML)
	case email.HTML != "":
		m.SetBody("text/html", email.HTML)
	default:
		m.SetBody("text/plain", email.Text)
	}
	return m, messageID
}

func rawMessage(from sender, email *domain.OutboundEmail) ([]byte, string, error) {
	m, id := buildMessage(from, email)
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, "", fmt.Errorf("compose message: %w", err)
	}
	return buf.Bytes(), id, nil
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i < len(address)-1 {
		return address[i+1:]
	}
	return "localhost"
}

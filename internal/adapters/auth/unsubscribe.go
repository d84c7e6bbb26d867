package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/golang-jwt/jwt/v5"

	"bawabamail/internal/domain"
)

const unsubscribePurpose = "unsubscribe"

// Paths served by the newsletter controller.
const (
	UnsubscribePath         = "/api/newsletter/unsubscribe"
	OneClickUnsubscribePath = "/api/newsletter/unsubscribe/one-click"
)

type unsubscribeClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
}

type unsubscribeURLBuilder struct {
	secret  []byte
	baseURL *url.URL
}

// NewUnsubscribeURLBuilder returns a builder that signs the recipient address into the link.
// Links carry no expiry so that unsubscribe keeps working from old emails.
func NewUnsubscribeURLBuilder(secret, siteURL string) (domain.UnsubscribeURLBuilder, error) {
	if secret == "" {
		return nil, errors.New("unsubscribe secret is required")
	}
	u, err := url.Parse(strings.TrimSuffix(siteURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid site url %q", siteURL)
	}
	return &unsubscribeURLBuilder{secret: []byte(secret), baseURL: u}, nil
}

func (b *unsubscribeURLBuilder) Build(email string) (string, error) {
	return b.link(UnsubscribePath, email)
}

func (b *unsubscribeURLBuilder) OneClickURL(email string) (string, error) {
	return b.link(OneClickUnsubscribePath, email)
}

// link never echoes the address in its errors; they end up in campaign error logs.
func (b *unsubscribeURLBuilder) link(path, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return "", errors.New("email address is empty")
	}
	if err := checkmail.ValidateFormat(normalized); err != nil {
		return "", errors.New("email address is malformed")
	}
	claims := unsubscribeClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: normalized},
		Purpose:          unsubscribePurpose,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign unsubscribe token: %w", err)
	}
	u := *b.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func (b *unsubscribeURLBuilder) Parse(token string) (string, error) {
	claims := &unsubscribeClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", errors.Join(domain.ErrInvalidToken, err)
	}
	if claims.Purpose != unsubscribePurpose || claims.Subject == "" {
		return "", domain.ErrInvalidToken
	}
	return claims.Subject, nil
}

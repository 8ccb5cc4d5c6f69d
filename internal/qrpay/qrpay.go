// Package qrpay signs and verifies the payment payloads carried in passenger QR codes.
package qrpay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"driverdesk/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidPayload = errors.New("invalid qr payload")

type claims struct {
	Sum       int64  `json:"sum"`
	Recipient string `json:"recipient"`
	jwt.RegisteredClaims
}

// Issuer creates and checks HS256 tokens. Now is injectable for tests.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) Issuer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return Issuer{Secret: []byte(secret), TTL: ttl, Now: time.Now}
}

func (i Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue signs a payload of sum for recipient.
func (i Issuer) Issue(sum int64, recipient string) (string, error) {
	if len(i.Secret) == 0 {
		return "", fmt.Errorf("qr secret not configured")
	}
	if sum <= 0 {
		return "", fmt.Errorf("%w: sum must be positive", ErrInvalidPayload)
	}
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Sum:       sum,
		Recipient: strings.TrimSpace(recipient),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
		},
	})
	return token.SignedString(i.Secret)
}

// Parse verifies the signature and expiry and returns the decoded payload.
func (i Issuer) Parse(raw string) (models.QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.QRPayload{}, fmt.Errorf("%w: empty token", ErrInvalidPayload)
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return i.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		return models.QRPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if c.Sum <= 0 {
		return models.QRPayload{}, fmt.Errorf("%w: sum must be positive", ErrInvalidPayload)
	}
	out := models.QRPayload{Sum: c.Sum, Recipient: c.Recipient}
	if c.IssuedAt != nil {
		out.CreatedAt = c.IssuedAt.Time
	}
	return out, nil
}

// Outcome turns a presented token into a scanner outcome. Anything that does not
// verify counts as "not found".
func (i Issuer) Outcome(raw string) models.ScanOutcome {
	payload, err := i.Parse(raw)
	if err != nil {
		return models.ScanOutcome{Matched: false}
	}
	return models.ScanOutcome{Matched: true, Payload: &payload}
}

// DemoScanner stands in for the camera: every session is answered with a freshly
// issued token for the session amount, run through the same verification path.
type DemoScanner struct {
	Issuer    Issuer
	Recipient string
	Delay     time.Duration
}

func (s DemoScanner) Scan(ctx context.Context, session models.ScanSession) (models.ScanOutcome, error) {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return models.ScanOutcome{}, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	token, err := s.Issuer.Issue(session.Amount, s.Recipient)
	if err != nil {
		return models.ScanOutcome{}, err
	}
	return s.Issuer.Outcome(token), nil
}

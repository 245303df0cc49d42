// Package session mints and verifies the HS256 session tokens handed to the
// designer extension. Tokens are JWT shaped and can be read by any JWT
// library, but signing and verification are done here so the encoding is
// byte-for-byte stable.
package session

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTTL is the lifetime of a minted token.
const DefaultTTL = 24 * time.Hour

// header is the fixed token header.
const header = `{"alg":"HS256","typ":"JWT"}`

var (
	ErrInvalidFormat    = errors.New("Invalid JWT format")
	ErrInvalidSignature = errors.New("Invalid signature")
	ErrTokenExpired     = errors.New("Token expired")
	ErrInvalidPayload   = errors.New("Invalid token payload")
)

// User is the identity bound to a token.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
}

// Claims is the token payload. SiteID is null when the token is not bound to
// a site.
type Claims struct {
	User   User    `json:"user"`
	SiteID *string `json:"siteId"`
	Exp    int64   `json:"exp"`
}

// Site returns the bound site id or "".
func (c *Claims) Site() string {
	if c.SiteID == nil {
		return ""
	}

	return *c.SiteID
}

// ExpiresAt returns exp as a time.
func (c *Claims) ExpiresAt() time.Time {
	return time.Unix(c.Exp, 0)
}

// Signer mints and verifies tokens with a shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Signer)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Signer) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// NewSigner creates a new Signer instance.
func NewSigner(secret string, opts ...Option) *Signer {
	s := &Signer{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TTL returns the configured token lifetime.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Mint signs a token for user, optionally bound to siteID. It returns the
// token and its exp in unix seconds.
func (s *Signer) Mint(user User, siteID string) (string, int64, error) {
	claims := Claims{
		User: user,
		Exp:  s.now().Add(s.ttl).Unix(),
	}
	if siteID != "" {
		claims.SiteID = &siteID
	}

	token, err := s.Sign(&claims)
	if err != nil {
		return "", 0, err
	}

	return token, claims.Exp, nil
}

// Sign encodes and signs claims as they are, without touching exp.
func (s *Signer) Sign(claims *Claims) (string, error) {
	payload, err := marshalClaims(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	signingInput := EncodeSegment([]byte(header)) + "." + EncodeSegment(payload)

	return signingInput + "." + s.signature(signingInput), nil
}

// marshalClaims encodes claims without HTML escaping, so &, < and > stay
// literal as they do in tokens minted by other implementations.
func marshalClaims(claims *Claims) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(claims); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Verify checks format, then signature, then expiry, and returns the payload.
func (s *Signer) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidFormat
	}

	expected := s.signature(parts[0] + "." + parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, ErrInvalidSignature
	}

	raw, err := DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if claims.Exp < s.now().Unix() {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}

func (s *Signer) signature(signingInput string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))

	return EncodeSegment(mac.Sum(nil))
}

// EncodeSegment is unpadded base64url.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeSegment accepts padded or unpadded base64url.
func DecodeSegment(seg string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(seg, "="))
}

// Fingerprint returns a short hash of a token, safe to log.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:6])
}

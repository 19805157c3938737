package mfa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/secureteam/access-gate/autherrors"
	"github.com/secureteam/access-gate/replaystore"
)

const (
	secretBytes = 20 // 160 bits, RFC 4226 minimum

	// SetupTTL bounds how long a generated secret stays pending before the
	// account confirms it with a valid code.
	SetupTTL = 600 * time.Second

	setupKeyPrefix = "mfa:setup:"
)

// SecretStore persists confirmed long-term secrets. Persistence itself is a
// collaborator concern; the gate only hands the secret over after the
// account proves possession with a valid code.
type SecretStore interface {
	Save(ctx context.Context, account, secret string) error
}

// Service manages the TOTP secret lifecycle and validates time-based codes.
type Service struct {
	issuer      string
	setupCache  replaystore.Store
	secretStore SecretStore
	logger      *zap.Logger
}

type ServiceOption func(*Service)

// WithSecretStore enables promotion of confirmed secrets to long-term
// storage.
func WithSecretStore(store SecretStore) ServiceOption {
	return func(s *Service) {
		s.secretStore = store
	}
}

func NewService(issuer string, setupCache replaystore.Store, logger *zap.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		issuer:     issuer,
		setupCache: setupCache,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GenerateSecret returns a fresh cryptographically random base32 secret.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)

	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate mfa secret: %w", err)
	}

	return secretEncoding.EncodeToString(raw), nil
}

// ProvisioningURI formats the otpauth URI encoding secret, account, and
// issuer for authenticator-app enrollment. Pure formatting, no side effects.
func ProvisioningURI(secret, account, issuer string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(issuer), url.PathEscape(account), secret, url.QueryEscape(issuer))
}

// ValidateCode reports whether code matches the secret at any time step in
// the accepted drift window around now.
func ValidateCode(secret, code string, now time.Time) bool {
	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}

	counter := now.Unix() / stepSeconds

	for i := -backSteps; i <= forwardSteps; i++ {
		step := counter + int64(i)
		if step < 0 {
			continue
		}

		expected := hotpCode(key, uint64(step))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}

	return false
}

// BeginSetup generates a pending secret for account and caches it for
// SetupTTL. A new call overwrites any earlier pending secret.
func (s *Service) BeginSetup(ctx context.Context, account string) (secret, uri string, err error) {
	secret, err = GenerateSecret()
	if err != nil {
		return "", "", err
	}

	if err := s.setupCache.SetWithTTL(ctx, setupKeyPrefix+account, secret, SetupTTL); err != nil {
		return "", "", fmt.Errorf("failed to cache setup secret: %w", err)
	}

	s.logger.Info("MFA setup started.", zap.String("account", account))

	return secret, ProvisioningURI(secret, account, s.issuer), nil
}

// VerifySetup checks code against the account's pending secret. An expired
// or missing pending setup fails with ErrSessionExpired; it never falls
// through to "no secret required". On success the secret is promoted to the
// configured secret store, if any.
func (s *Service) VerifySetup(ctx context.Context, account, code string, now time.Time) error {
	secret, found, err := s.setupCache.Get(ctx, setupKeyPrefix+account)
	if err != nil {
		return fmt.Errorf("failed to load setup secret: %w", err)
	}

	if !found {
		return autherrors.ErrSessionExpired
	}

	if !ValidateCode(secret, code, now) {
		return autherrors.ErrInvalidCode
	}

	if s.secretStore != nil {
		if err := s.secretStore.Save(ctx, account, secret); err != nil {
			return fmt.Errorf("failed to persist confirmed secret: %w", err)
		}
	}

	s.logger.Info("MFA setup confirmed.", zap.String("account", account))

	return nil
}

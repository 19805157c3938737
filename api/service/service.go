package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/secureteam/access-gate/mfa"
	"github.com/secureteam/access-gate/token"
)

// Service backs the credential-issuance API: MFA secret lifecycle plus token
// issuance after a successful code verification.
type Service struct {
	mfaService   *mfa.Service
	tokenService *token.Service
	audience     string
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(mfaService *mfa.Service, tokenService *token.Service, audience string, logger *zap.Logger) *Service {
	return &Service{
		mfaService:   mfaService,
		tokenService: tokenService,
		audience:     audience,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *Service) MfaSetup(ctx context.Context, account string) (secret, uri string, err error) {
	return s.mfaService.BeginSetup(ctx, account)
}

// MfaVerify checks the account's pending setup code and, on success, issues
// a token bound to the presented device fingerprint.
func (s *Service) MfaVerify(ctx context.Context, account, code, deviceID string) (string, error) {
	if err := s.mfaService.VerifySetup(ctx, account, code, s.now()); err != nil {
		return "", err
	}

	signed, err := s.tokenService.Issue(account, s.audience, deviceID)
	if err != nil {
		s.logger.Error("Failed to issue token after MFA verification.",
			zap.String("account", account), zap.Error(err))

		return "", err
	}

	return signed, nil
}

func (s *Service) PublicJWKS() ([]byte, error) {
	return s.tokenService.PublicJWKS()
}

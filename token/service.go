package token

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secureteam/access-gate/autherrors"
	"github.com/secureteam/access-gate/replaystore"
)

const (
	signingAlgorithm = "RS256"

	// TokenTTL is the fixed lifetime of issued tokens.
	TokenTTL = time.Hour

	replayKeyPrefix = "token:jti:"
)

// Service issues and verifies signed, single-use, audience-scoped tokens.
// Verification consumes the token's jti through the replay store, so a token
// verifies successfully at most once regardless of how often it is presented.
type Service struct {
	issuer   string
	keyPair  *KeyPair
	replay   replaystore.Store
	logger   *zap.Logger
	now      func() time.Time
	tokenTTL time.Duration
}

func NewService(issuer string, keyPair *KeyPair, replay replaystore.Store, logger *zap.Logger) *Service {
	return &Service{
		issuer:   issuer,
		keyPair:  keyPair,
		replay:   replay,
		logger:   logger,
		now:      time.Now,
		tokenTTL: TokenTTL,
	}
}

// Valid implements jwt.Claims. Expiry, audience, and issuer are checked
// explicitly in Service.Verify so the checks run in a fixed order against
// the service clock.
func (c *Claims) Valid() error {
	return nil
}

// Issue creates a signed token for subject, scoped to audience and bound to
// deviceID. The jti is not recorded anywhere at issuance; it is consumed at
// first verification.
func (s *Service) Issue(subject, audience, deviceID string) (string, error) {
	now := s.now()

	claims := &Claims{
		DeviceID: deviceID,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   subject,
			Audience:  audience,
			Issuer:    s.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = s.keyPair.KeyID

	signed, err := tok.SignedString(s.keyPair.Private)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Verify checks the token's signature, expiry, audience, and issuer, then
// atomically consumes its jti. A replay-store failure during the jti check
// fails verification; it is never treated as a pass.
func (s *Service) Verify(ctx context.Context, tokenString, requiredAudience string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return s.keyPair.Public, nil
	})
	if err != nil {
		return nil, parseErrorKind(err)
	}

	now := s.now()

	if claims.ExpiresAt == 0 || now.Unix() >= claims.ExpiresAt {
		return nil, autherrors.ErrTokenExpired
	}

	if claims.Audience != requiredAudience {
		return nil, autherrors.ErrAudienceMismatch
	}

	if claims.Issuer != s.issuer {
		return nil, autherrors.ErrIssuerMismatch
	}

	if claims.Id == "" {
		return nil, autherrors.ErrMalformedCredential
	}

	remaining := time.Duration(claims.ExpiresAt-now.Unix()) * time.Second

	stored, err := s.replay.SetIfAbsent(ctx, replayKeyPrefix+claims.Id, "consumed", remaining)
	if err != nil {
		return nil, fmt.Errorf("replay check failed: %w", err)
	}

	if !stored {
		s.logger.Warn("Token replay detected.",
			zap.String("jti", claims.Id),
			zap.String("subject", claims.Subject))

		return nil, autherrors.ErrReplayDetected
	}

	return claims, nil
}

// PublicJWKS exposes the verification key for out-of-process verifiers.
func (s *Service) PublicJWKS() ([]byte, error) {
	return s.keyPair.PublicJWKS()
}

func parseErrorKind(err error) error {
	vErr, ok := err.(*jwt.ValidationError)
	if !ok {
		return autherrors.ErrMalformedCredential
	}

	if vErr.Errors&jwt.ValidationErrorMalformed != 0 {
		return autherrors.ErrMalformedCredential
	}

	return autherrors.ErrInvalidSignature
}

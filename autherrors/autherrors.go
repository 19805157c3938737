package autherrors

import (
	"errors"
)

var ErrMissingCredential = errors.New("missing credential")

var ErrMalformedCredential = errors.New("malformed credential")

var ErrInvalidSignature = errors.New("invalid token signature")

var ErrTokenExpired = errors.New("token expired")

var ErrAudienceMismatch = errors.New("audience mismatch")

var ErrIssuerMismatch = errors.New("issuer mismatch")

var ErrReplayDetected = errors.New("token replay detected")

var ErrSessionExpired = errors.New("mfa session expired")

var ErrInvalidCode = errors.New("invalid mfa code")

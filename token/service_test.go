package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/secureteam/access-gate/autherrors"
	"github.com/secureteam/access-gate/replaystore"
)

const (
	testIssuer   = "access-gate"
	testAudience = "secureteam-web"
)

func newTestService(t *testing.T) (*Service, *replaystore.MemoryStore) {
	t.Helper()

	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	store := replaystore.NewMemoryStore()
	t.Cleanup(store.Close)

	return NewService(testIssuer, keyPair, store, zap.NewNop()), store
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService(t)

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := svc.Verify(context.Background(), signed, testAudience)
	require.NoError(t, err)

	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, testAudience, claims.Audience)
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, "dev-1", claims.DeviceID)
	assert.NotEmpty(t, claims.Id)
}

func TestVerifyDetectsReplay(t *testing.T) {
	svc, _ := newTestService(t)

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed, testAudience)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrReplayDetected)
}

func TestVerifyExpiredToken(t *testing.T) {
	svc, _ := newTestService(t)

	issued := time.Now()
	svc.now = func() time.Time { return issued }

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(TokenTTL + time.Minute) }

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestVerifyExpiryBoundary(t *testing.T) {
	svc, _ := newTestService(t)

	issued := time.Now().Truncate(time.Second)
	svc.now = func() time.Time { return issued }

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	// Exactly at expiry the token no longer verifies.
	svc.now = func() time.Time { return issued.Add(TokenTTL) }

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrTokenExpired)
}

func TestVerifyForeignKeypair(t *testing.T) {
	svc, _ := newTestService(t)
	other, _ := newTestService(t)

	signed, err := other.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrInvalidSignature)
}

func TestVerifyAudienceMismatch(t *testing.T) {
	svc, _ := newTestService(t)

	signed, err := svc.Issue("alice", "another-audience", "dev-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrAudienceMismatch)
}

func TestVerifyIssuerMismatch(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	store := replaystore.NewMemoryStore()
	t.Cleanup(store.Close)

	issuing := NewService("someone-else", keyPair, store, zap.NewNop())
	verifying := NewService(testIssuer, keyPair, store, zap.NewNop())

	signed, err := issuing.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	_, err = verifying.Verify(context.Background(), signed, testAudience)
	assert.ErrorIs(t, err, autherrors.ErrIssuerMismatch)
}

func TestVerifyMalformedToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Verify(context.Background(), "not-a-token", testAudience)
	assert.ErrorIs(t, err, autherrors.ErrMalformedCredential)
}

type failingStore struct {
	replaystore.Store
}

func (failingStore) SetIfAbsent(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("store unreachable")
}

func TestVerifyFailsClosedOnStoreError(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	require.NoError(t, err)

	svc := NewService(testIssuer, keyPair, failingStore{}, zap.NewNop())

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed, testAudience)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, autherrors.ErrReplayDetected)
}

func TestIssueDoesNotConsumeJti(t *testing.T) {
	svc, store := newTestService(t)

	signed, err := svc.Issue("alice", testAudience, "dev-1")
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), signed, testAudience)
	require.NoError(t, err, "first verification must succeed, so issuance cannot have pre-recorded the jti")

	consumed, err := store.Exists(context.Background(), replayKeyPrefix+claims.Id)
	require.NoError(t, err)
	assert.True(t, consumed)
}

func TestPublicJWKS(t *testing.T) {
	svc, _ := newTestService(t)

	jwks, err := svc.PublicJWKS()
	require.NoError(t, err)

	assert.Contains(t, string(jwks), `"keys"`)
	assert.Contains(t, string(jwks), `"RS256"`)
	assert.Contains(t, string(jwks), svc.keyPair.KeyID)
}

func TestLoadKeyPairRejectsGarbage(t *testing.T) {
	_, err := LoadKeyPair([]byte("not a pem block"))
	assert.Error(t, err)
}

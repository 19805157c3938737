package token

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/lestrrat-go/jwx/jwk"
)

const rsaKeyBits = 2048

// KeyPair holds the signing keypair and its JWKS representation. The private
// key never leaves the issuing process; only the public half is exported.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
	KeyID   string
}

// GenerateKeyPair creates a fresh RSA keypair. Used when no keypair is
// configured; every process restart then invalidates previously issued
// tokens, which is acceptable for single-node deployments only.
func GenerateKeyPair() (*KeyPair, error) {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing keypair: %w", err)
	}

	return newKeyPair(private)
}

// LoadKeyPair parses a PEM-encoded PKCS#1 or PKCS#8 RSA private key. The
// supplied key is used verbatim; no rotation happens after startup.
func LoadKeyPair(privatePEM []byte) (*KeyPair, error) {
	block, _ := pem.Decode(privatePEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in configured private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return newKeyPair(key)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configured private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("configured private key is not an RSA key")
	}

	return newKeyPair(rsaKey)
}

func newKeyPair(private *rsa.PrivateKey) (*KeyPair, error) {
	key, err := jwk.New(private.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to build jwk from public key: %w", err)
	}

	if err := jwk.AssignKeyID(key); err != nil {
		return nil, fmt.Errorf("failed to compute key id: %w", err)
	}

	return &KeyPair{
		Private: private,
		Public:  &private.PublicKey,
		KeyID:   key.KeyID(),
	}, nil
}

// PublicJWKS renders the verification key as a JWKS document for
// out-of-process verifiers.
func (kp *KeyPair) PublicJWKS() (json.RawMessage, error) {
	key, err := jwk.New(kp.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to build jwk from public key: %w", err)
	}

	if err := key.Set(jwk.KeyIDKey, kp.KeyID); err != nil {
		return nil, err
	}

	if err := key.Set(jwk.AlgorithmKey, signingAlgorithm); err != nil {
		return nil, err
	}

	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	set.Add(key)

	jsonData, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jwks: %w", err)
	}

	return jsonData, nil
}

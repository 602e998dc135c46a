package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs the JWTs the relay mints (Apple client assertions and Firebase custom
// tokens) and hands back the matching public key for verification in tests.
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
	GetSigningMethod() jwt.SigningMethod
}

// KeyPairSigner signs with a KeyPair and puts its key id in the "kid" header, which
// both Apple and Firebase use to pick the verification key.
type KeyPairSigner struct {
	kp *KeyPair
}

var _ Signer = (*KeyPairSigner)(nil)

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{kp: keyPair}
}

func (s *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.kp.GetSigningMethod(), claims)
	if s.kp.KeyID != "" {
		t.Header["kid"] = s.kp.KeyID
	}
	signed, err := t.SignedString(s.kp.PrivateKey)
	if err != nil {
		// The key itself is never part of the error.
		return "", fmt.Errorf("[KeyPairSigner Sign] %s key %q: %w", s.kp.Algorithm, s.kp.KeyID, err)
	}
	return signed, nil
}

// GetVerificationKey is a jwt.Keyfunc that only accepts this signer's algorithm.
func (s *KeyPairSigner) GetVerificationKey(t *jwt.Token) (any, error) {
	if t.Method.Alg() != s.kp.Algorithm {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return s.kp.PublicKey, nil
}

func (s *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	return s.kp.GetSigningMethod()
}

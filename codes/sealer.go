package codes

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize  = 32
	sealInfo = "auth-relay code payload v1"
)

var (
	ErrShortMasterKey = errors.New("sealing key must be at least 32 bytes")
	ErrUnsealFailed   = errors.New("unable to open sealed payload")
)

// Sealer encrypts code payloads with AES-256-GCM. Each code gets its own key derived
// with HKDF-SHA256 from the master key, using the code as salt, so a payload can only
// be opened together with the code it was issued under.
type Sealer struct {
	master []byte
}

func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) < keySize {
		return nil, ErrShortMasterKey
	}
	return &Sealer{master: append([]byte(nil), masterKey...)}, nil
}

// GenerateMasterKey returns a random master key for deployments without a configured one.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("[GenerateMasterKey] %w", err)
	}
	return key, nil
}

// Seal returns base64(nonce || ciphertext || tag).
func (s *Sealer) Seal(code string, payload *Payload) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("[Sealer.Seal] marshal: %w", err)
	}
	aead, err := s.aead(code)
	if err != nil {
		return "", fmt.Errorf("[Sealer.Seal] %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("[Sealer.Seal] nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(code, sealed string) (*Payload, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	aead, err := s.aead(code)
	if err != nil {
		return nil, fmt.Errorf("[Sealer.Open] %w", err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrUnsealFailed
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	var payload Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, fmt.Errorf("[Sealer.Open] unmarshal: %w", err)
	}
	return &payload, nil
}

func (s *Sealer) aead(code string) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.master, []byte(code), []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Package token seals JSON payloads into opaque, URL-safe submission tokens
// and opens them again. Tokens are AES-256-GCM envelopes keyed by the SHA-256
// of a configured secret.
package token

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
	"strings"
)

const (
	// Version is the only envelope version this codec reads or writes.
	Version = 1
	// MinSecretLen is the shortest secret New accepts.
	MinSecretLen = 16

	nonceSize = 12
	tagSize   = 16
)

// ErrInvalidToken is returned for any token that cannot be opened. It does
// not say why: a wrong key and a corrupted ciphertext look the same.
var ErrInvalidToken = errors.New("invalid token")

// ConfigError reports a missing or weak secret.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "token configuration: " + e.Reason
}

// envelope is the JSON wrapper around the sealed bytes.
type envelope struct {
	V   int    `json:"v"`
	IV  string `json:"iv"`
	CT  string `json:"ct"`
	Tag string `json:"tag"`
}

// Codec seals and opens tokens. It is immutable after New and safe for
// concurrent use.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// New derives the key from secret and builds the codec.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, &ConfigError{Reason: "secret is not set"}
	}
	if len(secret) < MinSecretLen {
		return nil, &ConfigError{Reason: fmt.Sprintf("secret must be at least %d characters", MinSecretLen)}
	}
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// Seal encodes payload as JSON and encrypts it under a fresh random nonce.
func (c *Codec) Seal(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	packed, err := json.Marshal(envelope{
		V:   Version,
		IV:  b64.EncodeToString(nonce),
		CT:  b64.EncodeToString(ct),
		Tag: b64.EncodeToString(tag),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return b64.EncodeToString(packed), nil
}

// Open verifies and decrypts token and returns the JSON payload. Every
// failure is ErrInvalidToken and no plaintext is returned with it.
func (c *Codec) Open(token string) (json.RawMessage, error) {
	raw, err := decode(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.V != Version {
		return nil, ErrInvalidToken
	}

	nonce, err := decode(env.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrInvalidToken
	}
	ct, err := decode(env.CT)
	if err != nil {
		return nil, ErrInvalidToken
	}
	tag, err := decode(env.Tag)
	if err != nil || len(tag) != tagSize {
		return nil, ErrInvalidToken
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil || !json.Valid(plaintext) {
		return nil, ErrInvalidToken
	}
	return plaintext, nil
}

// OpenAs opens token and decodes the payload into a T. On failure it returns
// the zero T.
func OpenAs[T any](c *Codec, token string) (T, error) {
	var zero T
	raw, err := c.Open(token)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, ErrInvalidToken
	}
	return v, nil
}

var b64 = base64.RawURLEncoding.Strict()

// decode accepts base64url with or without padding. Unused trailing bits
// must be zero so each payload has exactly one encoding.
func decode(s string) ([]byte, error) {
	return b64.DecodeString(strings.TrimRight(s, "="))
}

package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealed wraps a Bucket and encrypts values at rest with XChaCha20-Poly1305.
// Access tokens are sensitive, so their file goes through this layer.
type Sealed struct {
	inner Bucket
	key   []byte
}

// KeyFromPassphrase derives a 32-byte sealing key via HKDF-SHA256.
func KeyFromPassphrase(passphrase string) []byte {
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte("token-store-seal"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := r.Read(key); err != nil {
		// hkdf.Read over sha256 cannot fail for a 32-byte request
		panic(err)
	}
	return key
}

// NewSealed creates an encrypting bucket over inner.
func NewSealed(inner Bucket, key []byte) (*Sealed, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &Sealed{inner: inner, key: key}, nil
}

func (s *Sealed) seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealed) open(sealed string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed value too short")
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, nil)
}

func (s *Sealed) Get(key string, v any) (bool, error) {
	var sealed string
	ok, err := s.inner.Get(key, &sealed)
	if err != nil || !ok {
		return false, err
	}
	plaintext, err := s.open(sealed)
	if err != nil {
		return false, fmt.Errorf("unseal %q: %w", key, err)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (s *Sealed) Set(key string, v any) error {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return err
	}
	sealed, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	return s.inner.Set(key, sealed)
}

func (s *Sealed) Delete(key string) error { return s.inner.Delete(key) }
func (s *Sealed) Clear() error            { return s.inner.Clear() }
func (s *Sealed) Keys() ([]string, error) { return s.inner.Keys() }

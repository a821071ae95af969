package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"sync"
)

// SaltLen is the fixed length of the per-user salt prefixed to every raw
// token before sealing. Identity resolution slices it back off after a
// successful unseal.
const SaltLen = 16

// TokenAlphabet is the character set for generated tokens and ids.
const TokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ErrNoKey is returned by Seal/Open when no master key is configured. The
// callers treat it as "no match", never as a request failure.
var ErrNoKey = errors.New("master key not configured")

var (
	keyMu sync.RWMutex
	key   []byte
)

// SetKeyHex sets the AES-256-GCM master key from a hex string. An empty
// string clears the key, degrading every token lookup to anonymous.
func SetKeyHex(hexKey string) error {
	keyMu.Lock()
	defer keyMu.Unlock()
	if hexKey == "" {
		key = nil
		return nil
	}
	b, err := hex.DecodeString(hexKey)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return errors.New("master key must be 32 bytes (AES-256)")
	}
	key = b
	return nil
}

// Enabled reports whether a master key is configured.
func Enabled() bool {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return len(key) == 32
}

func currentKey() []byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return key
}

// Seal encrypts plaintext with the master key using AES-256-GCM and
// returns base64(nonce|ciphertext).
func Seal(plaintext []byte) (string, error) {
	k := currentKey()
	if k == nil {
		return "", ErrNoKey
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := gcm.Seal(nil, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(append(nonce, out...)), nil
}

// Open decrypts a Seal blob. Any malformed or foreign blob yields an
// error; callers treat that as a non-match.
func Open(blob string) ([]byte, error) {
	k := currentKey()
	if k == nil {
		return nil, ErrNoKey
	}
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	ns := gcm.NonceSize()
	if len(data) < ns {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, data[:ns], data[ns:], nil)
}

// Digest returns the base64-encoded SHA-256 of s. Password hashes use
// Digest(salt + password).
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// KeyedDigest returns a base64 HMAC-SHA256 of s under the master key, so
// the input (a client IP) is anonymized before any persistence or logging.
// Without a key it falls back to the plain digest.
func KeyedDigest(s string) string {
	k := currentKey()
	if k == nil {
		return Digest(s)
	}
	mac := hmac.New(sha256.New, k)
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Token generates an n-character token from a cryptographically secure
// random source over the alphanumeric alphabet.
func Token(n int) (string, error) {
	raw := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range raw {
		out[i] = TokenAlphabet[int(b)%len(TokenAlphabet)]
	}
	return string(out), nil
}

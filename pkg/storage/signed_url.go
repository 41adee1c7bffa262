package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// SignedURLSigner issues HMAC signed download tokens binding a subject (for
// example "attachment:12") to a storage key.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer. A non-positive ttl falls back to a day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token for key, valid until the returned expiry.
func (s *SignedURLSigner) Generate(subject, key string) (string, time.Time, error) {
	if subject == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("subject and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	encSubject := base64.RawURLEncoding.EncodeToString([]byte(subject))
	encKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	sig := s.sign(encSubject, ts, encKey)
	return strings.Join([]string{encSubject, ts, encKey, sig}, "."), expiresAt, nil
}

// Parse validates token and returns its subject and key. allowExpired skips the expiry check.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (subject, key string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	encSubject, ts, encKey, sig := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(encSubject, ts, encKey)), []byte(sig)) {
		return "", "", time.Time{}, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	rawSubject, err := base64.RawURLEncoding.DecodeString(encSubject)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encKey)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return string(rawSubject), string(rawKey), expiresAt, nil
}

func (s *SignedURLSigner) sign(parts ...string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

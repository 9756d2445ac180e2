package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-signed tokens past their deadline.
	ErrTokenExpired = errors.New("download token expired")
)

// SignedURLSigner creates and validates download tokens bound to a file id.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long generated tokens stay valid.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Sign returns a token of the form <exp>.<sig> for the file id.
func (s *SignedURLSigner) Sign(fileID string) (string, time.Time, error) {
	if fileID == "" {
		return "", time.Time{}, errors.New("file id required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	return exp + "." + s.signature(fileID, exp), expiresAt, nil
}

// Verify checks that token was issued for fileID and has not expired.
func (s *SignedURLSigner) Verify(fileID, token string) (time.Time, error) {
	exp, sig, ok := strings.Cut(token, ".")
	if !ok || fileID == "" || len(s.secret) == 0 {
		return time.Time{}, ErrInvalidToken
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return time.Time{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.signature(fileID, exp)), []byte(sig)) {
		return time.Time{}, ErrInvalidToken
	}
	expiresAt := time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return expiresAt, ErrTokenExpired
	}
	return expiresAt, nil
}

func (s *SignedURLSigner) signature(fileID, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(fileID + "|" + exp))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

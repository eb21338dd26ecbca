package server

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// csrfFieldName is the hidden input carrying the token in every form.
const csrfFieldName = "csrf_token"

// csrfMaxAge bounds how long an issued form stays submittable.
const csrfMaxAge = 4 * time.Hour

// csrfSigner issues and verifies stateless HMAC-signed form tokens. Tokens
// encode a nonce and issue time, so no server-side session is needed.
type csrfSigner struct {
	secret []byte
	now    func() time.Time
}

func newCSRFSigner(secret string) (*csrfSigner, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("server: generate csrf secret: %w", err)
		}
	}
	return &csrfSigner{secret: key, now: time.Now}, nil
}

// Issue returns a fresh token.
func (s *csrfSigner) Issue() string {
	payload := uuid.NewString() + ":" + strconv.FormatInt(s.now().Unix(), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + s.sign(payload)
}

// Verify reports whether the token is authentic and within its lifetime.
func (s *csrfSigner) Verify(token string) bool {
	encoded, mac, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	payload := string(raw)
	if !hmac.Equal([]byte(mac), []byte(s.sign(payload))) {
		return false
	}

	_, stamp, ok := strings.Cut(payload, ":")
	if !ok {
		return false
	}
	issued, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(issued, 0))
	return age >= 0 && age <= csrfMaxAge
}

func (s *csrfSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

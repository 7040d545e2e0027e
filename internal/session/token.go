// Package session implements the admin session: a stateless token of the form
// "<base64url(payload json)>.<hex hmac-sha256>" carried in an HTTP cookie.
//
// Issue and Verify are pure functions shared by the gatekeeper middleware and the
// request handlers, so both sides agree on the signature by construction.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Lifetime of a session; there is no refresh.
const Lifetime = 7 * 24 * time.Hour

var (
	ErrMalformed = errors.New("session: malformed token")
	ErrSignature = errors.New("session: bad signature")
	ErrExpired   = errors.New("session: expired")
)

// Payload timestamps are unix milliseconds.
type Payload struct {
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

// Issue builds a token valid from now until now+Lifetime.
func Issue(secret string, now time.Time) string {
	iat := now.UnixMilli()
	p := Payload{IssuedAt: iat, ExpiresAt: iat + Lifetime.Milliseconds()}
	b, _ := json.Marshal(p)

	encoded := base64.RawURLEncoding.EncodeToString(b)
	return encoded + "." + sign(encoded, secret)
}

// Verify checks the signature in constant time, then decodes the payload and
// rejects it once now is past exp.
func Verify(token, secret string, now time.Time) (Payload, error) {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" || strings.Contains(sig, ".") {
		return Payload{}, ErrMalformed
	}

	// compared as lowercase hex text so a case-flipped digit is a mismatch
	if !Equal([]byte(sig), []byte(sign(encoded, secret))) {
		return Payload{}, ErrSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrMalformed
	}

	// pointers so a missing or non-numeric exp is rejected
	var body struct {
		Iat *float64 `json:"iat"`
		Exp *float64 `json:"exp"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Exp == nil {
		return Payload{}, ErrMalformed
	}
	if float64(now.UnixMilli()) > *body.Exp {
		return Payload{}, ErrExpired
	}

	p := Payload{ExpiresAt: int64(*body.Exp)}
	if body.Iat != nil {
		p.IssuedAt = int64(*body.Iat)
	}
	return p, nil
}

// Valid is Verify reduced to a yes/no answer.
func Valid(token, secret string, now time.Time) bool {
	_, err := Verify(token, secret, now)
	return err == nil
}

// Equal compares two byte strings without short-circuiting on the first
// differing byte. Inputs of different length are unequal without comparing contents.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// VerifyAdminPassword compares the supplied password to the configured one in constant time.
// An empty expected password never matches.
func VerifyAdminPassword(input, expected string) bool {
	if expected == "" {
		return false
	}
	return Equal([]byte(input), []byte(expected))
}

func mac(encoded, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(encoded))
	return h.Sum(nil)
}

func sign(encoded, secret string) string {
	return hex.EncodeToString(mac(encoded, secret))
}
